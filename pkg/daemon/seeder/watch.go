package seeder

import (
	"context"
	"errors"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch imports OPL files created or rewritten in dir until ctx ends. Each
// file is imported once it has been quiet for the settle period, so a log
// still being copied is not read half written. Subdirectories are not
// watched.
func (sd *Seeder) Watch(ctx context.Context, dir string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return err
	}

	sd.mu.Lock()
	if sd.closed {
		sd.mu.Unlock()
		_ = fsw.Close()
		return errors.New("seeder closed")
	}
	sd.watcher = fsw
	sd.mu.Unlock()

	sd.log.Info("watching seed directory", "dir", dir)
	defer sd.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !isLogFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				sd.schedule(event.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			sd.log.Error("watcher error", "error", err)
		}
	}
}

// schedule (re)starts the settle timer for path.
func (sd *Seeder) schedule(path string) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	if sd.closed {
		return
	}
	if t, ok := sd.timers[path]; ok {
		t.Reset(sd.settle)
		return
	}
	sd.timers[path] = time.AfterFunc(sd.settle, func() {
		sd.mu.Lock()
		delete(sd.timers, path)
		closed := sd.closed
		sd.mu.Unlock()
		if closed {
			return
		}

		flights, entries, err := sd.ImportFile(path)
		switch {
		case errors.Is(err, ErrAlreadySeeded):
		case err != nil:
			sd.log.Warn("failed to import log", "path", path, "error", err)
		default:
			sd.log.Info("imported new log", "path", path, "flights", flights, "entries", entries)
		}
	})
}

// Close stops watching and cancels pending imports.
func (sd *Seeder) Close() error {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	if sd.closed {
		return nil
	}
	sd.closed = true
	for path, t := range sd.timers {
		t.Stop()
		delete(sd.timers, path)
	}
	if sd.watcher != nil {
		return sd.watcher.Close()
	}
	return nil
}
