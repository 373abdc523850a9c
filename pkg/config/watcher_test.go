package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hawkeye.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observer:\n  api_key: first\n"), 0o644))

	reloaded := make(chan *FileConfig, 4)
	w, err := NewWatcher(path, func(cfg *FileConfig) error {
		reloaded <- cfg
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(path, []byte("observer:\n  api_key: second\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "second", cfg.Observer.APIKey)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hawkeye.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observer: {}\n"), 0o644))

	reloaded := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(*FileConfig) error {
		reloaded <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))

	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, w.Stop())
}
