package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, sampleResult()))

	var got struct {
		View    string      `json:"view"`
		Entries []EntryInfo `json:"entries"`
		Flights []FlightInfo
		Meta    map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "entries", got.View)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, int64(1450), got.Entries[1].Time)
	assert.Empty(t, got.Entries[1].Text, "text rendering is not part of structured output")
	assert.Len(t, got.Flights, 1)
	assert.Equal(t, "sim", got.Meta["source"])
	assert.Equal(t, "2026-10-15T09:00:00Z", got.Meta["retrieved_at"])
	assert.Equal(t, "1.5s", got.Meta["elapsed"])
	assert.EqualValues(t, 2, got.Meta["rows"])
}

func TestJSONLFormatter(t *testing.T) {
	r := sampleResult()
	r.View = ViewFlights

	var buf bytes.Buffer
	require.NoError(t, (&JSONLFormatter{}).Format(&buf, r))

	sc := bufio.NewScanner(&buf)
	var n int
	for sc.Scan() {
		var f FlightInfo
		require.NoError(t, json.Unmarshal(sc.Bytes(), &f))
		assert.Equal(t, uint16(2), f.Flight)
		n++
	}
	assert.Equal(t, 1, n)
}
