package daemon

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

// RecoverFromStaleDaemon removes what a crashed fcsimd leaves behind: its
// PID file, its socket and the device store's LOCK file. It does nothing
// without a readable PID file and returns ErrDaemonAlreadyRunning when the
// recorded process is still alive.
func RecoverFromStaleDaemon(pidPath, socketPath, dbPath string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return nil //nolint:nilerr // no usable PID file, nothing to recover
	}
	if IsProcessRunning(pid) {
		return ErrDaemonAlreadyRunning
	}

	var removed []string
	for _, path := range []string{pidPath, socketPath, filepath.Join(dbPath, "LOCK")} {
		if err := os.Remove(path); err == nil {
			removed = append(removed, filepath.Base(path))
		} else if !errors.Is(err, os.ErrNotExist) {
			logging.Get("daemon").Warn("could not remove stale file", "path", path, "error", err)
		}
	}
	logging.Get("daemon").Warn("recovered from stale daemon", "stale_pid", pid, "removed", removed)
	return nil
}
