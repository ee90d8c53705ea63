package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, cfg Config, r *recorder) (context.CancelFunc, <-chan error) {
	t.Helper()

	w, err := New(cfg, r.handle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("timeout waiting for watcher")
	}

	t.Cleanup(cancel)
	return cancel, done
}

func TestNewValidation(t *testing.T) {
	noop := func(context.Context, string) {}

	_, err := New(Config{}, noop)
	assert.Error(t, err)

	_, err = New(Config{Dir: t.TempDir()}, nil)
	assert.Error(t, err)

	_, err = New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, noop)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))
	_, err = New(Config{Dir: file}, noop)
	assert.Error(t, err)
}

func TestWatcherReportsNewSnapshots(t *testing.T) {
	dir := t.TempDir()
	r := &recorder{}
	cancel, done := startWatcher(t, Config{Dir: dir, Debounce: 20 * time.Millisecond}, r)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crash.json"), []byte("{}"), 0o644))

	require.Eventually(t, func() bool {
		return len(r.seen()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"crash.json"}, r.seen())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	r := &recorder{}
	startWatcher(t, Config{Dir: dir, Debounce: 200 * time.Millisecond}, r)

	path := filepath.Join(dir, "dump.yaml")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("format: crash-snapshot/v1\n"), 0o644))
	}

	require.Eventually(t, func() bool {
		return len(r.seen()) >= 1
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, []string{"dump.yaml"}, r.seen())
}

func TestWatcherScansExisting(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.cdmp", "a.json", "skip.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	r := &recorder{}
	startWatcher(t, Config{Dir: dir, ScanExisting: true}, r)

	require.Eventually(t, func() bool {
		return len(r.seen()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a.json", "b.cdmp"}, r.seen())
}
