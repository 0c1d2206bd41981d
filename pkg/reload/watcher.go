package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher triggers a callback when a file changes. It watches the
// parent directory so editors and config-map mounts that replace the file
// by rename are still seen.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewFileWatcher creates a watcher for path. Events within interval of each
// other collapse into one callback.
func NewFileWatcher(path string, interval time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		path:     abs,
		watcher:  w,
		debounce: NewDebouncer(interval),
		logger:   logger.With("component", "reload.watcher"),
	}, nil
}

// Watch blocks until ctx is done, calling onChange after each settled burst
// of events on the watched file.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func()) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return errors.New("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.debounce.Stop()
		_ = fw.watcher.Close()
	}()

	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", fw.path, err)
	}
	fw.logger.Info("file watcher started", "path", fw.path)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("file watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !fw.relevant(event) {
				continue
			}
			fw.logger.Debug("file event detected", "op", event.Op.String())
			fw.debounce.Trigger(onChange)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			fw.logger.Error("file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == fw.path
}

// Debouncer delays a callback until triggers stop arriving for an interval.
type Debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules fn, cancelling any callback still pending.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

// Stop cancels the pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
