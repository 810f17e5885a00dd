// Package settings mirrors the per-object logging cadence configured on the
// device and writes local edits back to it.
package settings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownCadence is returned by ParseCadence for unrecognized names.
var ErrUnknownCadence = errors.New("unknown cadence")

// Cadence is how often an object is snapshotted into the flight log.
type Cadence uint8

// Cadence settings, in the order the device presents them.
const (
	Disabled Cadence = iota
	OnChange
	Every10ms
	Every50ms
	Every100ms
	Every500ms
	Every1s
	Every5s
	Every10s
	Every30s
	Every1m
)

var cadenceInfo = [...]struct {
	name   string
	period time.Duration
}{
	Disabled:   {"DISABLED", 0},
	OnChange:   {"ON_CHANGE", 0},
	Every10ms:  {"EVERY_10MS", 10 * time.Millisecond},
	Every50ms:  {"EVERY_50MS", 50 * time.Millisecond},
	Every100ms: {"EVERY_100MS", 100 * time.Millisecond},
	Every500ms: {"EVERY_500MS", 500 * time.Millisecond},
	Every1s:    {"EVERY_1S", time.Second},
	Every5s:    {"EVERY_5S", 5 * time.Second},
	Every10s:   {"EVERY_10S", 10 * time.Second},
	Every30s:   {"EVERY_30S", 30 * time.Second},
	Every1m:    {"EVERY_1M", time.Minute},
}

// Cadences returns every cadence in order.
func Cadences() []Cadence {
	out := make([]Cadence, len(cadenceInfo))
	for i := range cadenceInfo {
		out[i] = Cadence(i)
	}
	return out
}

// String returns the cadence name, e.g. EVERY_1S.
func (c Cadence) String() string {
	if int(c) < len(cadenceInfo) {
		return cadenceInfo[c].name
	}
	return fmt.Sprintf("Cadence(%d)", c)
}

// Period returns the snapshot period of periodic cadences and zero otherwise.
func (c Cadence) Period() time.Duration {
	if int(c) < len(cadenceInfo) {
		return cadenceInfo[c].period
	}
	return 0
}

// ParseCadence parses a cadence name. Matching ignores case and accepts '-'
// in place of '_'.
func ParseCadence(s string) (Cadence, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, info := range cadenceInfo {
		if info.name == name {
			return Cadence(i), nil
		}
	}
	return Disabled, fmt.Errorf("%w: %q", ErrUnknownCadence, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Cadence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cadence) UnmarshalText(b []byte) error {
	v, err := ParseCadence(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// LoggingMode is the logging update mode stored in object metadata.
type LoggingMode uint8

// Metadata logging modes.
const (
	ModeManual LoggingMode = iota
	ModePeriodic
	ModeOnChange
	ModeThrottled
)

// MetadataSize is the packed size of Metadata.
const MetadataSize = 4

// Metadata is the logging part of an object's metadata object.
type Metadata struct {
	Mode     LoggingMode
	PeriodMs uint16
}

// MarshalBinary packs the metadata: mode, a reserved byte, then the period.
func (m Metadata) MarshalBinary() ([]byte, error) {
	b := make([]byte, MetadataSize)
	b[0] = byte(m.Mode)
	binary.LittleEndian.PutUint16(b[2:], m.PeriodMs)
	return b, nil
}

// UnmarshalBinary unpacks metadata.
func (m *Metadata) UnmarshalBinary(b []byte) error {
	if len(b) < MetadataSize {
		return fmt.Errorf("metadata: %d bytes, want %d", len(b), MetadataSize)
	}
	if b[0] > byte(ModeThrottled) {
		return fmt.Errorf("metadata: unknown logging mode %d", b[0])
	}
	m.Mode = LoggingMode(b[0])
	m.PeriodMs = binary.LittleEndian.Uint16(b[2:])
	return nil
}

// Metadata returns the metadata that configures c.
func (c Cadence) Metadata() Metadata {
	switch c {
	case Disabled:
		return Metadata{Mode: ModeManual}
	case OnChange:
		return Metadata{Mode: ModeOnChange}
	default:
		return Metadata{Mode: ModePeriodic, PeriodMs: uint16(c.Period().Milliseconds())}
	}
}

// CadenceOf maps device metadata to the closest cadence. Periodic settings
// with a period that is not one of the named cadences round to the nearest.
func CadenceOf(m Metadata) Cadence {
	switch m.Mode {
	case ModeManual:
		return Disabled
	case ModeOnChange, ModeThrottled:
		return OnChange
	}
	if m.PeriodMs == 0 {
		return OnChange
	}
	want := time.Duration(m.PeriodMs) * time.Millisecond
	best := Every10ms
	for c := Every10ms; c <= Every1m; c++ {
		if absDiff(c.Period(), want) < absDiff(best.Period(), want) {
			best = c
		}
	}
	return best
}

func absDiff(a, b time.Duration) time.Duration {
	if a > b {
		return a - b
	}
	return b - a
}
