package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const defaultDebounce = 250 * time.Millisecond

// Target is a content directory and the reload to run when it changes.
type Target struct {
	Name       string
	Dir        string
	Extensions []string
	Reload     func() error
}

// ContentWatcher reloads content sources when files under their directories change.
type ContentWatcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	targets  []*watchedTarget

	mu      sync.Mutex
	running bool
}

type watchedTarget struct {
	Target
	dir       string
	debouncer *Debouncer
}

// New creates a watcher over targets. Targets whose directory does not exist
// are skipped with a warning.
func New(debounce time.Duration, targets ...Target) (*ContentWatcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fsw, errNew := fsnotify.NewWatcher()
	if errNew != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", errNew)
	}
	w := &ContentWatcher{fs: fsw, debounce: debounce}
	for _, target := range targets {
		if target.Reload == nil || strings.TrimSpace(target.Dir) == "" {
			continue
		}
		dir, errAbs := filepath.Abs(target.Dir)
		if errAbs != nil {
			dir = filepath.Clean(target.Dir)
		}
		info, errStat := os.Stat(dir)
		if errStat != nil || !info.IsDir() {
			log.WithField("dir", target.Dir).Warn("watcher: content directory unavailable, not watching")
			continue
		}
		if errAdd := fsw.Add(dir); errAdd != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watcher: watch %s: %w", dir, errAdd)
		}
		w.targets = append(w.targets, &watchedTarget{Target: target, dir: dir, debouncer: NewDebouncer(debounce)})
	}
	return w, nil
}

// Targets returns how many directories are being watched.
func (w *ContentWatcher) Targets() int { return len(w.targets) }

// Run processes file events until ctx is cancelled. It closes the underlying
// fsnotify watcher on return.
func (w *ContentWatcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher: already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		for _, target := range w.targets {
			target.debouncer.Stop()
		}
		if errClose := w.fs.Close(); errClose != nil {
			log.WithError(errClose).Warn("watcher: close failed")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			target := w.match(event)
			if target == nil {
				continue
			}
			log.WithFields(log.Fields{"path": event.Name, "op": event.Op.String()}).Debug("watcher: content changed")
			target.debouncer.Trigger(func() {
				if errReload := target.Reload(); errReload != nil {
					log.WithError(errReload).WithField("target", target.Name).Warn("watcher: reload failed")
					return
				}
				log.WithField("target", target.Name).Info("watcher: content reloaded")
			})
		case errWatch, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.WithError(errWatch).Warn("watcher: fsnotify error")
		}
	}
}

func (w *ContentWatcher) match(event fsnotify.Event) *watchedTarget {
	if event.Op == fsnotify.Chmod {
		return nil
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return nil
	}
	dir := filepath.Dir(event.Name)
	ext := strings.ToLower(filepath.Ext(base))
	for _, target := range w.targets {
		if dir != target.dir {
			continue
		}
		if len(target.Extensions) == 0 {
			return target
		}
		for _, want := range target.Extensions {
			if ext == strings.ToLower(want) {
				return target
			}
		}
	}
	return nil
}

// Debouncer runs the most recent callback once events stop arriving for the interval.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		d.callback = nil
		stopped := d.stopped
		d.mu.Unlock()
		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
