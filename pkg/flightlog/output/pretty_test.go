package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyFormatter_Format(t *testing.T) {
	r := sampleResult()
	r.Cached = true
	r.Warnings = []string{"flight 3 incomplete"}

	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "Source:")
	assert.Contains(t, out, "sim")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "(cached)")
	assert.Contains(t, out, "BaroAltitude")
	assert.Contains(t, out, "Rows:")
	assert.Contains(t, out, "1.0 KiB")
	assert.Contains(t, out, "flight 3 incomplete")
}

func TestPrettyFormatter_EmptyAndInterrupted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, &Result{Source: "daemon", Interrupted: true}))

	out := buf.String()
	assert.Contains(t, out, "Nothing to show")
	assert.Contains(t, out, "Interrupted by user")
}

func TestPrettyFormatter_TruncatesLongData(t *testing.T) {
	r := sampleResult()
	r.Entries[1].Data = strings.Repeat("x", 200)

	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))
	assert.NotContains(t, buf.String(), strings.Repeat("x", maxDataWidth))
	assert.Contains(t, buf.String(), "...")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
	assert.Empty(t, formatDurationString(0))
}

func TestCellStyle(t *testing.T) {
	assert.Equal(t, ColorPrimary, cellStyle(ViewSettings, 0, "GPSPosition").GetForeground())
	assert.Equal(t, ColorStaged, cellStyle(ViewSettings, 3, "EVERY_1S").GetForeground())
	assert.Equal(t, ColorMuted, cellStyle(ViewSettings, 2, "DISABLED").GetForeground())
	assert.Equal(t, ColorSuccess, cellStyle(ViewHistory, 3, "success").GetForeground())
	assert.Equal(t, ColorWarning, cellStyle(ViewHistory, 3, "partial").GetForeground())
	assert.Equal(t, ColorDanger, cellStyle(ViewHistory, 3, "failed").GetForeground())
}
