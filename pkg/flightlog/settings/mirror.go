package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// Mirror errors.
var (
	// ErrUnknownObject is returned when staging a change for an object that
	// is not loggable.
	ErrUnknownObject = errors.New("unknown loggable object")

	// ErrPartialFailure matches a *PartialFailure returned by Commit.
	ErrPartialFailure = errors.New("some settings were not applied")
)

// Descriptor is one loggable object and its cadence.
type Descriptor struct {
	Name    string  `json:"name" yaml:"name"`
	TypeID  uint32  `json:"type_id" yaml:"type_id"`
	Cadence Cadence `json:"cadence" yaml:"cadence"`
}

// ObjectIO performs blocking object round trips. link.Caller implements it.
type ObjectIO interface {
	Read(ctx context.Context, typeID uint32, instanceID uint16) ([]byte, error)
	Write(ctx context.Context, typeID uint32, instanceID uint16, data []byte) error
}

// PartialFailure lists the descriptors a commit could not write. Every other
// staged change was applied.
type PartialFailure struct {
	Failed []Descriptor
	Errs   []error
}

// Error lists the failed object names.
func (p *PartialFailure) Error() string {
	names := make([]string, len(p.Failed))
	for i, d := range p.Failed {
		names[i] = d.Name
	}
	return fmt.Sprintf("%s: %s", ErrPartialFailure, strings.Join(names, ", "))
}

// Is matches ErrPartialFailure.
func (p *PartialFailure) Is(target error) bool {
	return target == ErrPartialFailure
}

// Unwrap exposes the individual write errors.
func (p *PartialFailure) Unwrap() []error {
	return p.Errs
}

// Mirror holds the cadence of every loggable object in catalogue order along
// with locally staged edits.
type Mirror struct {
	mu     sync.Mutex
	io     ObjectIO
	types  []*uavo.ObjectType
	descs  []Descriptor
	index  map[string]int
	staged map[string]Cadence
	log    *logging.Logger
}

// NewMirror creates a mirror of cat's loggable objects. Every cadence starts
// as Disabled until Load.
func NewMirror(cat *uavo.Catalogue, io ObjectIO) *Mirror {
	types := cat.Loggable()
	m := &Mirror{
		io:     io,
		types:  types,
		descs:  make([]Descriptor, len(types)),
		index:  make(map[string]int, len(types)),
		staged: make(map[string]Cadence),
		log:    logging.Get("settings"),
	}
	for i, t := range types {
		m.descs[i] = Descriptor{Name: t.Name, TypeID: t.ID, Cadence: Disabled}
		m.index[t.Name] = i
	}
	return m
}

// Load reads the metadata of every loggable object, one round trip each.
// Objects whose metadata could not be read keep their previous cadence; the
// errors are returned joined after every object was tried.
func (m *Mirror) Load(ctx context.Context) ([]Descriptor, error) {
	var errs []error
	for i, t := range m.types {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		raw, err := m.io.Read(ctx, t.MetaID(), 0)
		if err == nil {
			var md Metadata
			if err = md.UnmarshalBinary(raw); err == nil {
				m.mu.Lock()
				m.descs[i].Cadence = CadenceOf(md)
				m.mu.Unlock()
				continue
			}
		}
		m.log.Warn("failed to read logging setting", "object", t.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
	}

	m.mu.Lock()
	clear(m.staged)
	m.mu.Unlock()
	return m.Descriptors(), errors.Join(errs...)
}

// Descriptors returns the mirrored settings in catalogue order. Staged
// changes are not included.
func (m *Mirror) Descriptors() []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Descriptor, len(m.descs))
	copy(out, m.descs)
	return out
}

// Apply stages a cadence change. Nothing is sent until Commit. Staging the
// current cadence drops any pending change for the object.
func (m *Mirror) Apply(name string, c Cadence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, name)
	}
	if m.descs[i].Cadence == c {
		delete(m.staged, name)
		return nil
	}
	m.staged[name] = c
	return nil
}

// Staged returns pending changes in catalogue order.
func (m *Mirror) Staged() []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Descriptor
	for _, d := range m.descs {
		if c, ok := m.staged[d.Name]; ok {
			d.Cadence = c
			out = append(out, d)
		}
	}
	return out
}

// Discard drops every staged change.
func (m *Mirror) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.staged)
}

// Commit writes staged changes to the device one at a time, in catalogue
// order. A failed write does not stop the batch. When any write fails the
// result is a *PartialFailure naming exactly those objects; they remain
// staged while the successful ones are folded into the mirror.
func (m *Mirror) Commit(ctx context.Context) error {
	pending := m.Staged()
	if len(pending) == 0 {
		return nil
	}

	var pf PartialFailure
	for _, d := range pending {
		err := ctx.Err()
		if err == nil {
			md, _ := d.Cadence.Metadata().MarshalBinary()
			err = m.io.Write(ctx, m.types[m.index[d.Name]].MetaID(), 0, md)
		}
		if err != nil {
			m.log.Warn("failed to write logging setting", "object", d.Name, "cadence", d.Cadence, "error", err)
			pf.Failed = append(pf.Failed, d)
			pf.Errs = append(pf.Errs, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}

		m.mu.Lock()
		m.descs[m.index[d.Name]].Cadence = d.Cadence
		if m.staged[d.Name] == d.Cadence {
			delete(m.staged, d.Name)
		}
		m.mu.Unlock()
		m.log.Debug("logging setting written", "object", d.Name, "cadence", d.Cadence)
	}

	if len(pf.Failed) > 0 {
		return &pf
	}
	return nil
}
