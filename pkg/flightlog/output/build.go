package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/settings"
)

// EntriesFrom converts log entries for display with timestamps biased by
// baseTimeMs.
func EntriesFrom(entries []*logbook.Entry, baseTimeMs int64) []EntryInfo {
	out := make([]EntryInfo, len(entries))
	for i, e := range entries {
		out[i] = EntryInfo{
			Flight:   e.Flight,
			Index:    e.Index,
			Time:     e.CorrectedTime(baseTimeMs),
			Kind:     e.Kind.String(),
			Name:     e.Name(),
			Instance: e.InstanceID,
			Data:     codec.Data(e),
			Text:     codec.Text(e, baseTimeMs),
		}
	}
	return out
}

// FlightsFrom summarises entries per flight, in the order flights first
// appear.
func FlightsFrom(entries []*logbook.Entry) []FlightInfo {
	var out []FlightInfo
	pos := make(map[uint16]int)
	for _, e := range entries {
		i, ok := pos[e.Flight]
		if !ok {
			i = len(out)
			pos[e.Flight] = i
			out = append(out, FlightInfo{Flight: e.Flight, FirstMs: e.OffsetMs, LastMs: e.OffsetMs})
		}
		f := &out[i]
		f.Entries++
		f.Bytes += int64(len(e.Raw))
		f.FirstMs = min(f.FirstMs, e.OffsetMs)
		f.LastMs = max(f.LastMs, e.OffsetMs)
	}
	for i := range out {
		out[i].Duration = time.Duration(out[i].LastMs-out[i].FirstMs) * time.Millisecond
	}
	return out
}

// SettingsFrom merges the mirrored cadences with staged edits.
func SettingsFrom(current, staged []settings.Descriptor) []SettingInfo {
	pending := make(map[string]settings.Cadence, len(staged))
	for _, d := range staged {
		pending[d.Name] = d.Cadence
	}
	out := make([]SettingInfo, len(current))
	for i, d := range current {
		out[i] = SettingInfo{Name: d.Name, TypeID: d.TypeID, Cadence: d.Cadence.String()}
		if c, ok := pending[d.Name]; ok {
			out[i].Staged = c.String()
		}
	}
	return out
}

// HistoryFrom converts recorded operations for display.
func HistoryFrom(entries []*history.Entry) []HistoryInfo {
	out := make([]HistoryInfo, len(entries))
	for i, e := range entries {
		out[i] = HistoryInfo{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Operation: string(e.Operation),
			Outcome:   e.Outcome,
			Entries:   e.Entries,
			Elapsed:   e.Elapsed,
			Detail:    historyDetail(e),
			Error:     e.Error,
		}
	}
	return out
}

func historyDetail(e *history.Entry) string {
	switch e.Operation {
	case history.OpRetrieve:
		if len(e.Flights) == 0 {
			return e.Target
		}
		parts := make([]string, len(e.Flights))
		for i, f := range e.Flights {
			parts[i] = fmt.Sprint(f)
		}
		return fmt.Sprintf("%s flights=%s", e.Target, strings.Join(parts, ","))
	case history.OpExport:
		return fmt.Sprintf("%s (%s)", e.Path, e.Format)
	}
	return e.Source
}
