package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesTriggers(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Int32
	for i := int32(1); i <= 5; i++ {
		n := i
		d.Trigger(func() {
			calls.Add(1)
			last.Store(n)
		})
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(5), last.Load())
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestNewSkipsMissingDirectories(t *testing.T) {
	w, err := New(0,
		Target{Name: "missing", Dir: filepath.Join(t.TempDir(), "nope"), Reload: func() error { return nil }},
		Target{Name: "no-reload", Dir: t.TempDir()},
	)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Targets())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}

func TestContentWatcherReloadsOnMatchingChange(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	w, err := New(50*time.Millisecond, Target{
		Name:       "posts",
		Dir:        dir,
		Extensions: []string{".md"},
		Reload: func() error {
			reloads.Add(1)
			return nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, w.Targets())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("x"), 0o600))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), reloads.Load())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.md"), []byte("---\n---\n"), 0o600))
	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
