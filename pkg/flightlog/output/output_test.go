package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/settings"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

func sampleResult() *Result {
	return &Result{
		View: ViewEntries,
		Entries: []EntryInfo{
			{Flight: 2, Index: 0, Time: 1200, Kind: "text", Name: "Text", Data: "armed", Text: `1200 Text "armed"`},
			{Flight: 2, Index: 1, Time: 1450, Kind: "object", Name: "BaroAltitude", Data: "Altitude=101;Pressure=101.25", Text: "1450 BaroAltitude[0] Altitude=101 Pressure=101.25"},
		},
		Flights: []FlightInfo{
			{Flight: 2, Entries: 2, FirstMs: 1200, LastMs: 1450, Duration: 250 * time.Millisecond, Bytes: 1024},
		},
		Source:      "sim",
		Outcome:     "success",
		RetrievedAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		Elapsed:     1500 * time.Millisecond,
	}
}

func buildEntries(t *testing.T) []*logbook.Entry {
	t.Helper()
	cat := uavo.Default()
	baro, ok := cat.Lookup(uavo.BaroAltitudeID)
	require.True(t, ok)

	var out []*logbook.Entry
	for i := 0; i < 5; i++ {
		payload, err := baro.Pack(map[string][]float64{"Altitude": {float64(i)}})
		require.NoError(t, err)
		raw := codec.Encode(&logbook.Entry{
			Flight:   uint16(i / 3),
			Index:    uint16(i % 3),
			OffsetMs: uint32(100 * (i%3 + 1)),
			TypeID:   uavo.BaroAltitudeID,
			Kind:     logbook.KindObject,
			Payload:  payload,
		})
		e, err := codec.Decode(raw, cat)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"pretty", "plain", "json", "jsonl", "yaml", "tsv", "csv", "markdown", "template", "text"} {
		f, err := Get(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
	_, err := Get("xml")
	assert.Error(t, err)

	reg := NewRegistry()
	reg.Register("b", func() Formatter { return &PlainFormatter{} })
	reg.Register("a", func() Formatter { return &TSVFormatter{} })
	assert.Equal(t, []string{"a", "b"}, reg.Available())
}

func TestResultTable(t *testing.T) {
	r := sampleResult()

	header, rows := r.Table()
	assert.Equal(t, []string{"FLIGHT", "ENTRY", "TIME", "OBJECT", "DATA"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2", "1", "1450", "BaroAltitude", "Altitude=101;Pressure=101.25"}, rows[1])

	r.View = ViewFlights
	header, rows = r.Table()
	assert.Equal(t, "FLIGHT", header[0])
	assert.Equal(t, []string{"2", "2", "250ms", "1024"}, rows[0])
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, int64(1024), r.TotalBytes())
}

func TestEntriesFrom(t *testing.T) {
	infos := EntriesFrom(buildEntries(t), 1000)
	require.Len(t, infos, 5)

	assert.Equal(t, uint16(1), infos[4].Flight)
	assert.Equal(t, uint16(1), infos[4].Index)
	assert.Equal(t, int64(1200), infos[4].Time)
	assert.Equal(t, "BaroAltitude", infos[4].Name)
	assert.Equal(t, "object", infos[4].Kind)
	assert.Contains(t, infos[4].Data, "Altitude=4")
	assert.Contains(t, infos[4].Text, "1200 BaroAltitude[0]")
}

func TestFlightsFrom(t *testing.T) {
	flights := FlightsFrom(buildEntries(t))
	require.Len(t, flights, 2)

	assert.Equal(t, uint16(0), flights[0].Flight)
	assert.Equal(t, 3, flights[0].Entries)
	assert.Equal(t, 200*time.Millisecond, flights[0].Duration)
	assert.Equal(t, 2, flights[1].Entries)
	assert.Positive(t, flights[1].Bytes)

	assert.Empty(t, FlightsFrom(nil))
}

func TestSettingsFrom(t *testing.T) {
	current := []settings.Descriptor{
		{Name: "GPSPosition", TypeID: 1, Cadence: settings.Every1s},
		{Name: "BaroAltitude", TypeID: 2, Cadence: settings.Disabled},
	}
	staged := []settings.Descriptor{{Name: "BaroAltitude", TypeID: 2, Cadence: settings.Every100ms}}

	got := SettingsFrom(current, staged)
	require.Len(t, got, 2)
	assert.Equal(t, "EVERY_1S", got[0].Cadence)
	assert.Empty(t, got[0].Staged)
	assert.Equal(t, "DISABLED", got[1].Cadence)
	assert.Equal(t, "EVERY_100MS", got[1].Staged)
}

func TestHistoryFrom(t *testing.T) {
	ts := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	got := HistoryFrom([]*history.Entry{
		{ID: "retrieve-1", Timestamp: ts, Operation: history.OpRetrieve, Outcome: "success", Target: "all", Flights: []uint16{0, 1}, Entries: 12},
		{ID: "export-1", Timestamp: ts, Operation: history.OpExport, Outcome: "success", Path: "/tmp/a.csv", Format: "csv"},
		{ID: "clear-1", Timestamp: ts, Operation: history.OpClear, Outcome: "success", Source: "daemon"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "all flights=0,1", got[0].Detail)
	assert.Equal(t, "/tmp/a.csv (csv)", got[1].Detail)
	assert.Equal(t, "daemon", got[2].Detail)
	assert.Equal(t, "retrieve", got[0].Operation)
}
