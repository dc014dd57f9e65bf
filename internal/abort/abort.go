// Package abort lets an operator stop a running session by creating a file.
// The run observes the cancellation at its next trial boundary.
package abort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrAborted is the cancellation cause set when the abort file appears.
var ErrAborted = errors.New("abort: operator requested stop")

// ErrStale is returned by Watch when the abort file already exists.
var ErrStale = errors.New("abort: abort file already present")

// Watcher cancels a context when its file is created or written.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	logger    *slog.Logger
	cancel    context.CancelCauseFunc

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Watch derives a context from parent that is cancelled with ErrAborted when
// path appears. Call Stop to release the watch.
func Watch(parent context.Context, path string, logger *slog.Logger) (context.Context, *Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(abs); err == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrStale, abs)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, nil, fmt.Errorf("abort: create directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("abort: %w", err)
	}
	// Watch the directory; the file does not exist yet.
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, nil, fmt.Errorf("abort: watch %s: %w", filepath.Dir(abs), err)
	}

	ctx, cancel := context.WithCancelCause(parent)
	w := &Watcher{
		fsWatcher: fsWatcher,
		path:      abs,
		logger:    logger,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	w.wg.Add(1)
	go w.eventLoop(ctx)
	return ctx, w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.logger.Warn("abort file detected, stopping at next trial", "path", w.path)
			w.cancel(ErrAborted)
			return

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("abort watcher error", "error", err)
		}
	}
}

// Stop ends the watch. The derived context is cancelled.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.cancel(context.Canceled)
		err = w.fsWatcher.Close()
	})
	return err
}

// Aborted reports whether ctx ended because of the abort file.
func Aborted(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrAborted)
}
