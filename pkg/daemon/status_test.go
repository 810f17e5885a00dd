package daemon_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/flightlog/pkg/daemon"
)

func TestWriteStatusReady(t *testing.T) {
	dir := t.TempDir()
	statusPath := filepath.Join(dir, "fcsimd.status")

	if err := daemon.WriteStatusReady(statusPath, "/run/fcsimd.sock", 4); err != nil {
		t.Fatalf("WriteStatusReady failed: %v", err)
	}

	data, err := os.ReadFile(statusPath)
	if err != nil {
		t.Fatalf("Failed to read status file: %v", err)
	}

	var status map[string]any
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("Failed to parse status JSON: %v", err)
	}

	if status["status"] != daemon.StatusReady {
		t.Errorf("Expected status 'ready', got %v", status["status"])
	}
	if pid, _ := status["pid"].(float64); int(pid) != os.Getpid() {
		t.Errorf("Expected PID %d, got %v", os.Getpid(), status["pid"])
	}
	if status["socket"] != "/run/fcsimd.sock" {
		t.Errorf("Expected socket path, got %v", status["socket"])
	}
	if flights, _ := status["flights"].(float64); flights != 4 {
		t.Errorf("Expected 4 flights, got %v", status["flights"])
	}
	if _, exists := status["error"]; exists {
		t.Error("Error field should not be present in ready status")
	}
}

func TestWriteStatusError(t *testing.T) {
	dir := t.TempDir()
	statusPath := filepath.Join(dir, "fcsimd.status")

	testErr := errors.New("open device store: resource temporarily unavailable")
	if err := daemon.WriteStatusError(statusPath, testErr); err != nil {
		t.Fatalf("WriteStatusError failed: %v", err)
	}

	status, err := daemon.ReadStatus(statusPath)
	if err != nil {
		t.Fatalf("ReadStatus failed: %v", err)
	}
	if status.Status != daemon.StatusError {
		t.Errorf("Expected status 'error', got %q", status.Status)
	}
	if status.Error != testErr.Error() {
		t.Errorf("Expected error %q, got %q", testErr.Error(), status.Error)
	}
	if status.PID != 0 {
		t.Errorf("PID should be empty in error status, got %d", status.PID)
	}
}

func TestReadStatus_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := daemon.ReadStatus(filepath.Join(dir, "missing.status")); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.status")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := daemon.ReadStatus(bad); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestRemoveStatus(t *testing.T) {
	statusPath := filepath.Join(t.TempDir(), "fcsimd.status")
	if err := daemon.WriteStatusReady(statusPath, "", 0); err != nil {
		t.Fatal(err)
	}
	if err := daemon.RemoveStatus(statusPath); err != nil {
		t.Fatalf("RemoveStatus failed: %v", err)
	}
	if _, err := os.Stat(statusPath); !os.IsNotExist(err) {
		t.Error("Status file should have been removed")
	}
}

func TestStatusPath(t *testing.T) {
	got := daemon.StatusPath("/data/flightlog/fcsimd.sock")
	if want := "/data/flightlog/fcsimd.status"; got != want {
		t.Errorf("StatusPath() = %q, want %q", got, want)
	}
}
