package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

// AsyncOptions tunes an Async transport.
type AsyncOptions struct {
	// CallTimeout bounds each device call. Zero means no bound.
	CallTimeout time.Duration

	// Latency is added before every call, to mimic a radio link.
	Latency time.Duration

	// DropEvery silently drops every Nth response. Zero disables.
	DropEvery int

	// DuplicateEvery delivers every Nth response twice. Zero disables.
	DuplicateEvery int

	// QueueSize is the number of requests that may wait for the worker.
	QueueSize int
}

type call struct {
	id       RequestID
	typeID   uint32
	instance uint16
	write    bool
	data     []byte
}

// Async turns a synchronous Device into a Transport. One worker goroutine
// performs calls in issue order and posts their outcome to Events.
type Async struct {
	dev    Device
	opts   AsyncOptions
	ids    idSource
	queue  chan call
	events chan Response
	done   chan struct{}
	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	log    *logging.Logger
}

var _ Transport = (*Async)(nil)

// NewAsync starts a transport over dev.
func NewAsync(dev Device, opts AsyncOptions) *Async {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	ctx, stop := context.WithCancel(context.Background())
	a := &Async{
		ctx:    ctx,
		stop:   stop,
		dev:    dev,
		opts:   opts,
		queue:  make(chan call, opts.QueueSize),
		events: make(chan Response, opts.QueueSize*2),
		done:   make(chan struct{}),
		log:    logging.Get("link"),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// RequestObject queues a read.
func (a *Async) RequestObject(typeID uint32, instanceID uint16) RequestID {
	return a.enqueue(call{typeID: typeID, instance: instanceID})
}

// WriteObject queues a write.
func (a *Async) WriteObject(typeID uint32, instanceID uint16, data []byte) RequestID {
	return a.enqueue(call{typeID: typeID, instance: instanceID, write: true, data: data})
}

// Events returns the response channel.
func (a *Async) Events() <-chan Response {
	return a.events
}

// Close stops the worker, interrupting a call in progress. Queued requests
// are abandoned.
func (a *Async) Close() error {
	a.once.Do(func() {
		close(a.done)
		a.stop()
		a.wg.Wait()
		close(a.events)
	})
	return nil
}

func (a *Async) enqueue(c call) RequestID {
	c.id = a.ids.next()
	select {
	case a.queue <- c:
	case <-a.done:
	}
	return c.id
}

func (a *Async) run() {
	defer a.wg.Done()
	n := 0
	for {
		select {
		case <-a.done:
			return
		case c := <-a.queue:
			resp := a.perform(c)
			n++
			if a.opts.DropEvery > 0 && n%a.opts.DropEvery == 0 {
				a.log.Debug("dropping response", "id", c.id, "object", c.typeID)
				continue
			}
			if !a.post(resp) {
				return
			}
			if a.opts.DuplicateEvery > 0 && n%a.opts.DuplicateEvery == 0 {
				if !a.post(resp) {
					return
				}
			}
		}
	}
}

func (a *Async) perform(c call) Response {
	if a.opts.Latency > 0 {
		select {
		case <-time.After(a.opts.Latency):
		case <-a.done:
		}
	}

	ctx := a.ctx
	if a.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.CallTimeout)
		defer cancel()
	}

	resp := Response{ID: c.id, TypeID: c.typeID, InstanceID: c.instance}
	var err error
	if c.write {
		err = a.dev.WriteObject(ctx, c.typeID, c.instance, c.data)
	} else {
		resp.Payload, err = a.dev.ReadObject(ctx, c.typeID, c.instance)
	}
	resp.Status = statusOf(err)
	if resp.Status == StatusError {
		a.log.Warn("device call failed", "object", c.typeID, "write", c.write, "error", err)
	}
	return resp
}

func (a *Async) post(r Response) bool {
	select {
	case a.events <- r:
		return true
	case <-a.done:
		return false
	}
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}
