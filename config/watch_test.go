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

const watchConfigV1 = `
panels:
  - name: weather
    url: https://example.com/weather
`

const watchConfigV2 = `
panels:
  - name: weather
    url: https://example.com/weather
  - name: transit
    url: https://example.com/transit
`

func startWatch(t *testing.T, path string) <-chan *Config {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	go func() {
		done <- Watch(ctx, path, logger, func(cfg *Config) { changes <- cfg })
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Watch did not return after cancel")
		}
	})

	// let the watcher register before the test writes
	time.Sleep(100 * time.Millisecond)
	return changes
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchConfigV1), 0o644))

	changes := startWatch(t, path)
	require.NoError(t, os.WriteFile(path, []byte(watchConfigV2), 0o644))

	select {
	case cfg := <-changes:
		require.Len(t, cfg.Panels, 2)
		assert.Equal(t, "transit", cfg.Panels[1].Name)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatch_ReloadsOnRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "liveboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchConfigV1), 0o644))

	changes := startWatch(t, path)

	tmp := filepath.Join(dir, ".liveboard.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(watchConfigV2), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case cfg := <-changes:
		assert.Len(t, cfg.Panels, 2)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after rename")
	}
}

func TestWatch_InvalidConfigKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchConfigV1), 0o644))

	changes := startWatch(t, path)
	require.NoError(t, os.WriteFile(path, []byte("panels: []\n"), 0o644))

	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload with %d panels", len(cfg.Panels))
	case <-time.After(time.Second):
	}

	// a later valid save still applies
	require.NoError(t, os.WriteFile(path, []byte(watchConfigV2), 0o644))
	select {
	case cfg := <-changes:
		assert.Len(t, cfg.Panels, 2)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after fixing config")
	}
}

func TestWatch_UnchangedContentIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchConfigV1), 0o644))

	changes := startWatch(t, path)
	require.NoError(t, os.WriteFile(path, []byte(watchConfigV1), 0o644))

	select {
	case <-changes:
		t.Fatal("reload fired for identical content")
	case <-time.After(time.Second):
	}
}

func TestWatch_OtherFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "liveboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchConfigV1), 0o644))

	changes := startWatch(t, path)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(watchConfigV2), 0o644))

	select {
	case <-changes:
		t.Fatal("reload fired for a sibling file")
	case <-time.After(time.Second):
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "liveboard.yaml"), nil, func(*Config) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch")
}
