package output

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTSVFormatter(t *testing.T) {
	r := sampleResult()
	r.Entries[0].Data = "a\tb"

	var buf bytes.Buffer
	require.NoError(t, (&TSVFormatter{}).Format(&buf, r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "FLIGHT\tENTRY\tTIME\tOBJECT\tDATA", lines[0])
	assert.Equal(t, "2\t0\t1200\tText\ta b", lines[1])
}

func TestCSVFormatter_Quoting(t *testing.T) {
	r := sampleResult()
	r.Entries[0].Data = `said "hi", twice`

	var buf bytes.Buffer
	require.NoError(t, (&CSVFormatter{}).Format(&buf, r))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, `said "hi", twice`, records[1][4])
}

func TestMarkdownFormatter(t *testing.T) {
	r := sampleResult()
	r.View = ViewStatus
	r.Status = []StatusField{{Name: "link", Value: "a|b"}}

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownFormatter{}).Format(&buf, r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "| FIELD | VALUE |", lines[0])
	assert.Equal(t, "| ----- | ----- |", lines[1])
	assert.Equal(t, `| link | a\|b |`, lines[2])
}
