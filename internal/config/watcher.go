package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultPollInterval = 5 * time.Second

// fileState identifies one observed version of the config file. Modification
// time and size gate the cheap path; the content sum decides whether a
// reload actually changed anything.
type fileState struct {
	modTime time.Time
	size    int64
	sum     [sha256.Size]byte
}

// Watcher reloads the config file when it changes on disk and hands the old
// and new config to a callback. Detection is by polling; the deployment
// targets (container volumes, NFS home dirs) make inotify unreliable, and a
// five-second poll on one small file costs nothing.
//
// A file that fails to parse or validate is ignored with a warning; the last
// good config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	cancel   context.CancelFunc

	mu   sync.Mutex
	cfg  *Config
	seen fileState
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides the default 5s polling interval.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts watching it. The callback
// runs on the watcher's goroutine, outside its lock, once per observed
// content change.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, state, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.cfg = cfg
	w.seen = state

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.watch(ctx)
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.cancel()
}

func (w *Watcher) watch(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll performs one change check. Stat failures and invalid configs are
// logged and skipped; the next tick retries.
func (w *Watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: stat failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seen.modTime) && info.Size() == w.seen.size
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, state, err := w.read()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	if state.sum == w.seen.sum {
		// Touched but identical content.
		w.seen = state
		w.mu.Unlock()
		return
	}
	old := w.cfg
	w.cfg = cfg
	w.seen = state
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// read loads and validates the file, returning the parsed config together
// with the file state it was read from.
func (w *Watcher) read() (*Config, fileState, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileState{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}

	return cfg, fileState{
		modTime: info.ModTime(),
		size:    int64(len(data)),
		sum:     sha256.Sum256(data),
	}, nil
}
