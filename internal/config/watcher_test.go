package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voxnote/voxnote/internal/config"
)

const watcherBaseYAML = `
server:
  log_level: info
llm:
  primary:
    name: openai
    model: gpt-4o-mini
folders:
  - name: Work
    activation_phrase: "work note"
`

const watcherDebugYAML = `
server:
  log_level: debug
llm:
  primary:
    name: openai
    model: gpt-4o-mini
folders:
  - name: Work
    activation_phrase: "work note"
`

const watcherBrokenYAML = `
server:
  log_level: bananas
`

// reloadRecorder collects onChange invocations for assertions.
type reloadRecorder struct {
	mu       sync.Mutex
	old, new *config.Config
	calls    int
	fired    chan struct{}
}

func newReloadRecorder() *reloadRecorder {
	return &reloadRecorder{fired: make(chan struct{}, 1)}
}

func (r *reloadRecorder) onChange(old, new *config.Config) {
	r.mu.Lock()
	r.old, r.new = old, new
	r.calls++
	r.mu.Unlock()
	select {
	case r.fired <- struct{}{}:
	default:
	}
}

func (r *reloadRecorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func startWatcher(t *testing.T, content string, onChange func(old, new *config.Config)) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	rewriteConfig(t, path, content)

	w, err := config.NewWatcher(path, onChange, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path
}

func rewriteConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func TestWatcher_LoadsImmediately(t *testing.T) {
	t.Parallel()

	w, _ := startWatcher(t, watcherBaseYAML, nil)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current returned nil after construction")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
}

func TestWatcher_ReloadsOnContentChange(t *testing.T) {
	t.Parallel()

	rec := newReloadRecorder()
	w, path := startWatcher(t, watcherBaseYAML, rec.onChange)

	rewriteConfig(t, path, watcherDebugYAML)

	select {
	case <-rec.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange not invoked within timeout")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.old == nil || rec.new == nil {
		t.Fatal("onChange received nil configs")
	}
	if rec.old.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level = %q, want %q", rec.old.Server.LogLevel, config.LogInfo)
	}
	if rec.new.Server.LogLevel != config.LogDebug {
		t.Errorf("new log_level = %q, want %q", rec.new.Server.LogLevel, config.LogDebug)
	}
	if got := w.Current().Server.LogLevel; got != config.LogDebug {
		t.Errorf("Current log_level = %q, want %q", got, config.LogDebug)
	}
}

func TestWatcher_InvalidContentKeepsLastGoodConfig(t *testing.T) {
	t.Parallel()

	rec := newReloadRecorder()
	w, path := startWatcher(t, watcherBaseYAML, rec.onChange)

	rewriteConfig(t, path, watcherBrokenYAML)
	time.Sleep(300 * time.Millisecond)

	if n := rec.callCount(); n != 0 {
		t.Errorf("onChange fired %d times for an invalid config, want 0", n)
	}
	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Errorf("Current log_level = %q, want the last good value %q", got, config.LogInfo)
	}
}

func TestWatcher_TouchWithoutChangeIsIgnored(t *testing.T) {
	t.Parallel()

	rec := newReloadRecorder()
	_, path := startWatcher(t, watcherBaseYAML, rec.onChange)

	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("touch: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if n := rec.callCount(); n != 0 {
		t.Errorf("onChange fired %d times for identical content, want 0", n)
	}
}

func TestWatcher_MissingFileFailsConstruction(t *testing.T) {
	t.Parallel()

	if _, err := config.NewWatcher("/nonexistent/path.yaml", nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	w, _ := startWatcher(t, watcherBaseYAML, nil)
	w.Stop()
	w.Stop()
}
