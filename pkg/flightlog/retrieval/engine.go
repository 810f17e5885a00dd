// Package retrieval walks a device's log store flight by flight and entry by
// entry. Engine is a synchronous state machine fed with responses and clock
// ticks; Driver feeds it from a live transport.
package retrieval

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// Retrieval errors.
var (
	// ErrRequestTimeout ends a session whose request went unanswered after
	// every retry.
	ErrRequestTimeout = errors.New("log request timed out")

	// ErrCancelled ends a session stopped by Cancel.
	ErrCancelled = errors.New("retrieval cancelled")

	// ErrAlreadyStarted is returned by Start on an engine that has run.
	ErrAlreadyStarted = errors.New("retrieval already started")
)

// Defaults for Options.
const (
	DefaultRequestTimeout = 4 * time.Second
	DefaultMaxRetries     = 3
)

// State is the engine state.
type State int

// Engine states. Requesting, Applying and TimedOut are transient: a step
// always leaves the engine Waiting or Done.
const (
	Idle State = iota
	Requesting
	Waiting
	Applying
	TimedOut
	Cancelled
	Done
)

var stateNames = [...]string{"idle", "requesting", "waiting", "applying", "timed-out", "cancelled", "done"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Outcome is how a session ended.
type Outcome int

// Session outcomes.
const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Target selects which flights to retrieve.
type Target struct {
	All    bool
	Flight uint16
}

// AllFlights targets every flight on the device.
func AllFlights() Target { return Target{All: true} }

// SingleFlight targets one flight.
func SingleFlight(flight uint16) Target { return Target{Flight: flight} }

func (t Target) String() string {
	if t.All {
		return "all"
	}
	return fmt.Sprintf("flight %d", t.Flight)
}

// Source issues the device requests. link.LogClient implements it.
type Source interface {
	RequestStatus() link.RequestID
	RequestEntry(flight, entry uint16) link.RequestID
}

// Options bound each round trip.
type Options struct {
	// RequestTimeout is the deadline of one round trip.
	RequestTimeout time.Duration

	// MaxRetries is how many times an unanswered request is re-sent before
	// the session fails.
	MaxRetries int
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

// Progress is reported after every applied entry.
type Progress struct {
	Target  Target
	Flight  uint16
	Entry   uint16
	Entries int

	// LastFlight is the device's last flight index; only known for All.
	LastFlight uint16
}

// Result summarises a finished session. Entries retrieved before a failure
// or cancellation stay in the log.
type Result struct {
	Target     Target
	Outcome    Outcome
	Entries    int
	Flights    logbook.FlightIndexSet
	Skipped    int
	Duplicates int
	Mismatches int
	Retries    int
	Started    time.Time
	Finished   time.Time
	Err        error
}

// Observer receives session events. OnFinished is called exactly once.
type Observer interface {
	OnProgress(Progress)
	OnFinished(Result)
}

// ObserverFuncs adapts plain functions to Observer. Nil funcs are skipped.
type ObserverFuncs struct {
	Progress func(Progress)
	Finished func(Result)
}

func (o ObserverFuncs) OnProgress(p Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

func (o ObserverFuncs) OnFinished(r Result) {
	if o.Finished != nil {
		o.Finished(r)
	}
}

// Engine retrieves one session. It is not safe for concurrent use except for
// Cancel, which may be called from any goroutine. An engine runs once.
type Engine struct {
	src  Source
	cat  *uavo.Catalogue
	log  *logbook.OrderedLog
	opts Options
	obs  Observer
	lg   *logging.Logger

	state       State
	target      Target
	statusStep  bool
	statusKnown bool
	lastFlight  uint16
	cursor      logbook.Key
	pending     map[link.RequestID]struct{}
	deadline    time.Time
	attempts    int
	cancel      atomic.Bool
	result      Result
}

// NewEngine creates an engine that fills dst. obs may be nil.
func NewEngine(src Source, cat *uavo.Catalogue, dst *logbook.OrderedLog, opts Options, obs Observer) *Engine {
	if obs == nil {
		obs = ObserverFuncs{}
	}
	return &Engine{
		src:     src,
		cat:     cat,
		log:     dst,
		opts:    opts.withDefaults(),
		obs:     obs,
		lg:      logging.Get("retrieval"),
		pending: make(map[link.RequestID]struct{}),
	}
}

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Cursor returns the (flight, entry) position being requested.
func (e *Engine) Cursor() logbook.Key { return e.cursor }

// Deadline returns the deadline of the outstanding request while Waiting.
func (e *Engine) Deadline() (time.Time, bool) {
	return e.deadline, e.state == Waiting
}

// Result returns the session result once Done.
func (e *Engine) Result() Result { return e.result }

// Cancel requests cancellation. It takes effect at the next step.
func (e *Engine) Cancel() { e.cancel.Store(true) }

// Start clears the log and issues the first request.
func (e *Engine) Start(target Target, now time.Time) error {
	if e.state != Idle {
		return ErrAlreadyStarted
	}
	e.log.Reset()
	e.target = target
	e.result = Result{Target: target, Started: now}
	e.lg.Info("retrieval started", "target", target)

	e.state = Requesting
	if e.cancelled(now) {
		return nil
	}
	if target.All {
		e.statusStep = true
		e.cursor = logbook.Key{}
	} else {
		e.cursor = logbook.Key{Flight: target.Flight}
	}
	e.request(now)
	return nil
}

// Step observes cancellation and the deadline. Drivers call it on wake-ups
// that carry no response.
func (e *Engine) Step(now time.Time) {
	if e.cancelled(now) {
		return
	}
	e.Expire(now)
}

// Expire handles the deadline of the outstanding request. It does nothing
// before the deadline.
func (e *Engine) Expire(now time.Time) {
	if e.cancelled(now) || e.state != Waiting || now.Before(e.deadline) {
		return
	}
	e.timedOut(now)
}

// Abort ends the session with err, for example when the transport closes.
func (e *Engine) Abort(err error, now time.Time) {
	if e.state == Idle || e.state == Done {
		return
	}
	e.finish(OutcomeFailed, err, now)
}

// HandleResponse applies a device response. Responses to requests other than
// those issued for the current cursor are ignored.
func (e *Engine) HandleResponse(resp link.Response, now time.Time) {
	if e.cancelled(now) || e.state != Waiting {
		return
	}
	if _, ok := e.pending[resp.ID]; !ok {
		e.lg.Debug("ignoring stale response", "id", resp.ID)
		return
	}

	switch resp.Status {
	case link.StatusTimeout, link.StatusError:
		e.timedOut(now)
		return
	}

	if e.statusStep {
		e.applyStatus(resp, now)
		return
	}

	e.state = Applying
	if resp.Status == link.StatusNotFound {
		e.endOfFlight(now)
		return
	}

	// The device answers from its current selection. When the select write
	// was lost it still holds an older position, so the record is not ours.
	if k, err := codec.PeekKey(resp.Payload); err == nil && k != e.cursor {
		e.result.Mismatches++
		e.lg.Warn("device answered another entry", "want", e.cursor, "got", k)
		e.timedOut(now)
		return
	}

	entry, err := codec.Decode(resp.Payload, e.cat)
	switch {
	case errors.Is(err, codec.ErrEndOfFlight):
		e.endOfFlight(now)
		return
	case err != nil:
		e.result.Skipped++
		e.lg.Warn("skipping malformed record", "flight", e.cursor.Flight, "entry", e.cursor.Index, "error", err)
	case !e.log.Append(entry):
		e.result.Duplicates++
		e.lg.Debug("duplicate entry absorbed", "key", entry.Key())
	default:
		e.obs.OnProgress(Progress{
			Target:     e.target,
			Flight:     entry.Flight,
			Entry:      entry.Index,
			Entries:    e.log.Len(),
			LastFlight: e.lastFlight,
		})
	}
	e.advance(now)
}

func (e *Engine) applyStatus(resp link.Response, now time.Time) {
	var st link.LogStatus
	e.statusStep = false
	if resp.Status != link.StatusOK || st.UnmarshalBinary(resp.Payload) != nil {
		// walk flights until one turns out empty
		e.lg.Warn("log status unavailable, probing flights", "status", resp.Status)
	} else {
		e.statusKnown = true
		e.lastFlight = st.Flight
		e.lg.Debug("log status", "last_flight", st.Flight, "used_slots", st.UsedSlots)
	}
	e.moveTo(logbook.Key{}, now)
}

func (e *Engine) advance(now time.Time) {
	if e.cursor.Index == ^uint16(0) {
		e.endOfFlight(now)
		return
	}
	e.moveTo(logbook.Key{Flight: e.cursor.Flight, Index: e.cursor.Index + 1}, now)
}

func (e *Engine) endOfFlight(now time.Time) {
	if e.target.All && e.cursor.Flight < ^uint16(0) {
		more := e.cursor.Index > 0
		if e.statusKnown {
			more = e.cursor.Flight < e.lastFlight
		}
		if more {
			e.moveTo(logbook.Key{Flight: e.cursor.Flight + 1}, now)
			return
		}
	}
	e.finish(OutcomeSuccess, nil, now)
}

func (e *Engine) moveTo(k logbook.Key, now time.Time) {
	e.cursor = k
	e.attempts = 0
	clear(e.pending)
	if e.cancelled(now) {
		return
	}
	e.request(now)
}

func (e *Engine) request(now time.Time) {
	e.state = Requesting
	var id link.RequestID
	if e.statusStep {
		id = e.src.RequestStatus()
	} else {
		id = e.src.RequestEntry(e.cursor.Flight, e.cursor.Index)
	}
	e.pending[id] = struct{}{}
	e.deadline = now.Add(e.opts.RequestTimeout)
	e.state = Waiting
}

func (e *Engine) timedOut(now time.Time) {
	e.state = TimedOut
	if e.attempts >= e.opts.MaxRetries {
		err := fmt.Errorf("%w: flight %d entry %d after %d attempts",
			ErrRequestTimeout, e.cursor.Flight, e.cursor.Index, e.attempts+1)
		if e.statusStep {
			err = fmt.Errorf("%w: log status after %d attempts", ErrRequestTimeout, e.attempts+1)
		}
		e.finish(OutcomeFailed, err, now)
		return
	}
	e.attempts++
	e.result.Retries++
	e.lg.Warn("request timed out, retrying", "flight", e.cursor.Flight, "entry", e.cursor.Index, "attempt", e.attempts)
	e.request(now)
}

// cancelled finishes the session when cancellation was requested.
func (e *Engine) cancelled(now time.Time) bool {
	if e.state == Idle || e.state == Done {
		return true
	}
	if !e.cancel.Load() {
		return false
	}
	e.state = Cancelled
	e.finish(OutcomeCancelled, ErrCancelled, now)
	return true
}

func (e *Engine) finish(outcome Outcome, err error, now time.Time) {
	if e.state == Done {
		return
	}
	e.state = Done
	clear(e.pending)
	e.result.Outcome = outcome
	e.result.Err = err
	e.result.Entries = e.log.Len()
	e.result.Flights = e.log.Flights()
	e.result.Finished = now

	e.lg.Info("retrieval finished",
		"outcome", outcome,
		"entries", e.result.Entries,
		"skipped", e.result.Skipped,
		"duplicates", e.result.Duplicates,
		"retries", e.result.Retries,
		"mismatches", e.result.Mismatches,
	)
	e.obs.OnFinished(e.result)
}
