package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/jamesainslie/flightlog/pkg/client"
	"github.com/jamesainslie/flightlog/pkg/flightlog/config"
	"github.com/jamesainslie/flightlog/pkg/flightlog/export"
	"github.com/jamesainslie/flightlog/pkg/flightlog/history"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/retrieval"
	"github.com/jamesainslie/flightlog/pkg/flightlog/settings"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// simConfig returns a decoded config for a small simulated device.
func simConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("link.mode", config.LinkSim)
	v.Set("sim.flights", 2)
	v.Set("sim.entries_per_flight", 3)
	v.Set("sim.seed", 7)
	v.Set("sim.latency", "0s")
	v.Set("sim.drop_every", 0)
	v.Set("sim.duplicate_every", 0)
	v.Set("cache.path", filepath.Join(t.TempDir(), "cache"))
	v.Set("history.path", filepath.Join(t.TempDir(), "history"))
	cfg, err := config.Decode(v)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	return cfg
}

func TestSourceName(t *testing.T) {
	cfg := simConfig(t)
	if got := sourceName(cfg); got != "sim:7" {
		t.Errorf("sourceName(sim) = %q, want %q", got, "sim:7")
	}

	cfg.Link.Mode = config.LinkDaemon
	cfg.Daemon.SocketPath = "/tmp/fcsimd.sock"
	if got := sourceName(cfg); got != "daemon:/tmp/fcsimd.sock" {
		t.Errorf("sourceName(daemon) = %q", got)
	}
}

func TestExportConfigFormat(t *testing.T) {
	defer func() { exportFormat, exportAnchor = "", "" }()
	dir := t.TempDir()

	tests := []struct {
		name       string
		flag       string
		path       string
		wantFormat export.Format
		wantPath   string
	}{
		{"flag wins over extension", "xml", filepath.Join(dir, "log.csv"), export.FormatXML, filepath.Join(dir, "log.csv")},
		{"extension", "", filepath.Join(dir, "log.opl"), export.FormatOPL, filepath.Join(dir, "log.opl")},
		{"config default appends extension", "", filepath.Join(dir, "flight"), export.FormatCSV, filepath.Join(dir, "flight.csv")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := simConfig(t)
			cfg.Export.Format = "csv"
			exportFormat = tt.flag
			ec, err := exportConfig(cfg, tt.path)
			if err != nil {
				t.Fatalf("exportConfig() failed: %v", err)
			}
			if ec.Format != tt.wantFormat {
				t.Errorf("Format = %v, want %v", ec.Format, tt.wantFormat)
			}
			if ec.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", ec.Path, tt.wantPath)
			}
		})
	}
}

func TestExportConfigDirectoryAndAnchor(t *testing.T) {
	defer func() { exportFormat, exportAnchor = "", "" }()
	cfg := simConfig(t)
	cfg.Export.Directory = "/var/logs"
	exportAnchor = "2026-10-15T09:30:00Z"

	ec, err := exportConfig(cfg, "flight3.xml")
	if err != nil {
		t.Fatalf("exportConfig() failed: %v", err)
	}
	if ec.Path != "/var/logs/flight3.xml" {
		t.Errorf("Path = %q, want the export directory applied", ec.Path)
	}
	if !ec.AdjustTimestamps {
		t.Error("--anchor should turn on timestamp adjustment")
	}
	if !ec.Anchor.Equal(time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("Anchor = %v", ec.Anchor)
	}

	exportAnchor = "yesterday"
	if _, err := exportConfig(cfg, "flight3.xml"); err == nil {
		t.Error("Expected error for an unparsable anchor")
	}
}

func TestSelectEntries(t *testing.T) {
	var entries []*logbook.Entry
	for f := uint16(0); f < 3; f++ {
		for i := uint16(0); i < 4; i++ {
			entries = append(entries, &logbook.Entry{Flight: f, Index: i})
		}
	}

	if got := selectEntries(entries, -1, 0); len(got) != 12 {
		t.Errorf("all flights: got %d entries, want 12", len(got))
	}
	got := selectEntries(entries, 1, 0)
	if len(got) != 4 || got[0].Flight != 1 {
		t.Errorf("flight 1: got %d entries", len(got))
	}
	if got := selectEntries(entries, 2, 3); len(got) != 3 {
		t.Errorf("limit: got %d entries, want 3", len(got))
	}
	if got := selectEntries(entries, 9, 0); len(got) != 0 {
		t.Errorf("missing flight: got %d entries", len(got))
	}
}

func TestRetrieveTarget(t *testing.T) {
	defer func() { retrieveFlight = -1 }()

	retrieveFlight = -1
	if tgt, err := retrieveTarget(); err != nil || !tgt.All {
		t.Errorf("default target = %v, %v; want all", tgt, err)
	}

	retrieveFlight = 4
	tgt, err := retrieveTarget()
	if err != nil || tgt.All || tgt.Flight != 4 {
		t.Errorf("flight 4 target = %v, %v", tgt, err)
	}

	retrieveFlight = 70000
	if _, err := retrieveTarget(); err == nil {
		t.Error("Expected error for a flight number past uint16")
	}
}

func TestParseSettingChanges(t *testing.T) {
	changes, err := parseSettingChanges([]string{"GPSPosition=every-1s", "BaroAltitude=DISABLED"})
	if err != nil {
		t.Fatalf("parseSettingChanges() failed: %v", err)
	}
	if len(changes) != 2 || changes[0].name != "GPSPosition" {
		t.Fatalf("unexpected changes %+v", changes)
	}
	if changes[1].cadence != settings.Disabled {
		t.Errorf("cadence = %v, want DISABLED", changes[1].cadence)
	}

	for _, bad := range []string{"GPSPosition", "=EVERY_1S", "GPSPosition=sometimes"} {
		if _, err := parseSettingChanges([]string{bad}); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestParseOperation(t *testing.T) {
	for _, s := range []string{"", "retrieve", "export", "clear", "settings"} {
		if _, err := parseOperation(s); err != nil {
			t.Errorf("parseOperation(%q) failed: %v", s, err)
		}
	}
	if _, err := parseOperation("scan"); err == nil {
		t.Error("Expected error for an unknown operation")
	}
}

func TestEnvOverrides(t *testing.T) {
	env := []string{"HOME=/root", "FLIGHTLOG_LINK_MODE=sim", "FLIGHTLOG_EXPORT_FORMAT=xml", "PATH=/bin"}
	got := envOverrides(env)
	want := []string{"FLIGHTLOG_EXPORT_FORMAT=xml", "FLIGHTLOG_LINK_MODE=sim"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("envOverrides() = %v, want %v", got, want)
	}
}

func TestHistoryFields(t *testing.T) {
	e := &history.Entry{
		ID:        "export-1",
		Operation: history.OpExport,
		Outcome:   "success",
		Path:      "/tmp/log.csv",
		Format:    "csv",
		Entries:   12,
		Bytes:     480,
	}
	names := map[string]string{}
	for _, f := range historyFields(e) {
		names[f.Name] = f.Value
	}
	if names["path"] != "/tmp/log.csv" || names["bytes"] != "480" {
		t.Errorf("export fields missing: %v", names)
	}
	if _, ok := names["target"]; ok {
		t.Error("empty target should be omitted")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{65 * time.Second, "1m 5s"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDaemonStatusFields(t *testing.T) {
	fields := daemonStatus(&client.DaemonStatus{UptimeSeconds: 90, MemoryBytes: 2048, Flights: 3, Entries: 1500})
	got := map[string]string{}
	for _, f := range fields {
		got[f.Name] = f.Value
	}
	if got["uptime"] != "1m 30s" || got["memory"] != "2.0 KiB" || got["entries"] != "1,500" {
		t.Errorf("unexpected status fields %v", got)
	}
}

func TestFormatterTemplate(t *testing.T) {
	defer viper.Reset()

	viper.Set("output", "template")
	if _, err := formatter("pretty"); err == nil {
		t.Error("Expected error for -o template without --template")
	}
	viper.Set("template", "{{.Source}}")
	if _, err := formatter("pretty"); err != nil {
		t.Errorf("formatter(template) failed: %v", err)
	}

	viper.Set("output", "nope")
	if _, err := formatter("pretty"); err == nil {
		t.Error("Expected error for an unknown output format")
	}
}

func TestSimSessionRetrievesAndExports(t *testing.T) {
	cfg := simConfig(t)
	cat := uavo.Default()
	ctx := context.Background()

	sess, err := openSession(ctx, cfg, cat)
	if err != nil {
		t.Fatalf("openSession() failed: %v", err)
	}
	defer sess.Close()

	res, err := sess.mgr.RetrieveLogs(ctx, retrieval.AllFlights())
	if err != nil {
		t.Fatalf("RetrieveLogs() failed: %v", err)
	}
	if res.Outcome != retrieval.OutcomeSuccess || res.Entries != 6 {
		t.Fatalf("retrieval = %v with %d entries, want success with 6", res.Outcome, res.Entries)
	}

	fields, err := sess.status(ctx)
	if err != nil {
		t.Fatalf("status() failed: %v", err)
	}
	if fields[0].Value != "sim" {
		t.Errorf("first status field = %+v, want link sim", fields[0])
	}

	off := openOffline(cfg, cat, sess.source)
	defer off.Close()

	n, err := off.mgr.Restore(sess.mgr.Entries())
	if err != nil || n != 6 {
		t.Fatalf("Restore() = %d, %v", n, err)
	}
	path := filepath.Join(t.TempDir(), "log.csv")
	er, err := off.mgr.ExportLogs(ctx, export.Config{Format: export.FormatCSV, Path: path})
	if err != nil {
		t.Fatalf("ExportLogs() failed: %v", err)
	}
	if er.Entries != 6 {
		t.Errorf("exported %d entries, want 6", er.Entries)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	cfg := simConfig(t)
	off := openOffline(cfg, uavo.Default(), "offline")
	if err := off.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if err := off.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
