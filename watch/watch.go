// Package watch polls the descriptor file and records a snapshot every time
// its contents change.
package watch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"tailplane/descriptor"
	"tailplane/model"
	"tailplane/storage"
	"tailplane/ui"
)

// ChangeFunc is called after every recorded snapshot. d is nil when the
// file failed to load.
type ChangeFunc func(snap *model.Snapshot, d *descriptor.Descriptor)

type Watcher struct {
	path     string
	interval time.Duration
	store    *storage.Store
	keep     int
	onChange ChangeFunc

	mu      sync.Mutex
	sum     uint64
	seen    bool
	current *descriptor.Descriptor
	result  descriptor.ValidationResult
	lastErr error
	last    *model.Snapshot
}

// New creates a watcher for path. store may be nil, in which case no
// history is written. keep bounds the stored history; 0 keeps everything.
func New(path string, interval time.Duration, store *storage.Store, keep int) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		path:     path,
		interval: interval,
		store:    store,
		keep:     keep,
	}
}

// OnChange registers fn to run after each change. It must be set before Start.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

func (w *Watcher) Path() string { return w.path }

// Start polls in the background until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		ui.Logf("info", "[watch] started on %s every %s", w.path, w.interval)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				ui.LogStatus("info", "[watch] stopped")
				return
			case <-ticker.C:
				if _, err := w.Check(); err != nil {
					ui.Logf("error", "[watch] %v", err)
				}
			}
		}
	}()
}

// Check reads the file once. It reports whether the contents changed since
// the previous call. A load failure is recorded and returned; the last good
// descriptor stays current.
func (w *Watcher) Check() (bool, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// forget the hash so the file reloads when it comes back
		w.mu.Lock()
		w.lastErr = err
		w.seen = false
		w.mu.Unlock()
		return false, fmt.Errorf("read %s: %w", w.path, err)
	}

	sum := xxhash.Sum64(data)
	w.mu.Lock()
	if w.seen && sum == w.sum {
		err := w.lastErr
		w.mu.Unlock()
		return false, err
	}
	w.seen = true
	w.sum = sum
	w.mu.Unlock()

	snap := &model.Snapshot{
		Timestamp: time.Now().UTC(),
		Source:    w.path,
		Checksum:  fmt.Sprintf("%016x", sum),
	}

	d, loadErr := w.load(data)
	var res descriptor.ValidationResult
	if loadErr != nil {
		snap.LoadError = loadErr.Error()
	} else {
		res = descriptor.Validate(d)
		snap.Schema = d.Schema().String()
		snap.Warnings = res.Warnings
		snap.Errors = res.Errors
		if raw, err := descriptor.Marshal(d, descriptor.FormatJSON); err == nil {
			snap.Descriptor = raw
		}
	}

	if w.store != nil {
		if err := w.store.SaveSnapshot(snap); err != nil {
			ui.Logf("error", "[watch] save snapshot: %v", err)
		} else if _, err := w.store.Prune(w.keep); err != nil {
			ui.Logf("error", "[watch] prune history: %v", err)
		}
	}

	w.mu.Lock()
	w.last = snap
	w.lastErr = loadErr
	if loadErr == nil {
		w.current = d
		w.result = res
	}
	fn := w.onChange
	w.mu.Unlock()

	if loadErr != nil {
		ui.Logf("error", "[watch] %s: %v", w.path, loadErr)
	} else {
		ui.Logf("success", "[watch] reloaded %s (%d error(s), %d warning(s))", w.path, len(res.Errors), len(res.Warnings))
	}

	if fn != nil {
		fn(snap, d)
	}
	return true, loadErr
}

func (w *Watcher) load(data []byte) (*descriptor.Descriptor, error) {
	format, err := descriptor.FormatFromPath(w.path)
	if err != nil {
		return nil, err
	}
	return descriptor.Parse(data, format)
}

// Current returns the last descriptor that loaded, with its validation
// result. d is nil until the file has loaded once.
func (w *Watcher) Current() (*descriptor.Descriptor, descriptor.ValidationResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, w.result
}

// LastError returns the error from the most recent check, if any.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// LastSnapshot returns the most recent snapshot taken by this watcher.
func (w *Watcher) LastSnapshot() *model.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
