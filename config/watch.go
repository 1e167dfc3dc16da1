package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events editors emit for one save.
const reloadDelay = 250 * time.Millisecond

// Watch reloads the file at path whenever it changes and passes each valid
// configuration to onChange. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, so atomic
// rename-over saves are seen. Invalid files are logged and skipped; the
// caller keeps running on its last good configuration. A save that leaves
// the content unchanged does not call onChange.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	file := filepath.Base(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// last holds the bytes of the most recently applied file
	last, _ := os.ReadFile(path)

	var (
		reloadMu sync.Mutex
		timerMu  sync.Mutex
		timer    *time.Timer
	)
	reload := func() {
		reloadMu.Lock()
		defer reloadMu.Unlock()
		if ctx.Err() != nil {
			return
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("config reload skipped", "path", path, "error", err)
			return
		}
		if bytes.Equal(data, last) {
			return
		}

		cfg, err := Parse(data)
		if err != nil {
			logger.Warn("config reload rejected, keeping current config", "path", path, "error", err)
			return
		}
		last = data
		logger.Info("config reloaded", "path", path, "panels", len(cfg.Panels))
		onChange(cfg)
	}
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDelay, reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
