package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Startup states written to the status file.
const (
	StatusReady = "ready"
	StatusError = "error"
)

// StatusFile represents the daemon startup status.
type StatusFile struct {
	Status  string `json:"status"`
	PID     int    `json:"pid,omitempty"`
	Socket  string `json:"socket,omitempty"`
	Flights int    `json:"flights,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteStatusReady writes a ready status file naming the socket and the
// number of flights the device holds.
func WriteStatusReady(path, socket string, flights int) error {
	return writeStatus(path, &StatusFile{
		Status:  StatusReady,
		PID:     os.Getpid(),
		Socket:  socket,
		Flights: flights,
	})
}

// WriteStatusError writes an error status file.
func WriteStatusError(path string, err error) error {
	return writeStatus(path, &StatusFile{
		Status: StatusError,
		Error:  err.Error(),
	})
}

func writeStatus(path string, status *StatusFile) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadStatus reads a status file.
func ReadStatus(path string) (*StatusFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var status StatusFile
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RemoveStatus removes the status file.
func RemoveStatus(path string) error {
	return os.Remove(path)
}

// StatusPath returns the status file that sits next to socketPath.
func StatusPath(socketPath string) string {
	dir := filepath.Dir(socketPath)
	base := filepath.Base(socketPath)
	return filepath.Join(dir, base[:len(base)-len(filepath.Ext(base))]+".status")
}
