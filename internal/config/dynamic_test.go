package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDynamicConfig_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "limits.yaml", `
websocket:
  maxConnectionsPerUser: 3
  sendQueueSize: 64
  maxMessageBytes: 1024
`)

	cfg, err := LoadDynamicConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.WebSocket.MaxConnectionsPerUser)
	assert.Equal(t, 64, cfg.WebSocket.SendQueueSize)
	assert.Equal(t, int64(1024), cfg.WebSocket.MaxMessageBytes)
}

func TestLoadDynamicConfig_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "limits.json",
		`{"websocket":{"maxConnectionsPerUser":7}}`)

	cfg, err := LoadDynamicConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.WebSocket.MaxConnectionsPerUser)
	// Omitted fields fall back to defaults
	defaults := DefaultDynamicConfig()
	assert.Equal(t, defaults.WebSocket.SendQueueSize, cfg.WebSocket.SendQueueSize)
	assert.Equal(t, defaults.WebSocket.MaxMessageBytes, cfg.WebSocket.MaxMessageBytes)
}

func TestLoadDynamicConfig_NormalizesInvalidValues(t *testing.T) {
	path := writeFile(t, t.TempDir(), "limits.json",
		`{"websocket":{"maxConnectionsPerUser":-1,"sendQueueSize":0,"maxMessageBytes":-5}}`)

	cfg, err := LoadDynamicConfig(path)
	require.NoError(t, err)
	defaults := DefaultDynamicConfig()
	assert.Equal(t, 0, cfg.WebSocket.MaxConnectionsPerUser)
	assert.Equal(t, defaults.WebSocket.SendQueueSize, cfg.WebSocket.SendQueueSize)
	assert.Equal(t, defaults.WebSocket.MaxMessageBytes, cfg.WebSocket.MaxMessageBytes)
}

func TestLoadDynamicConfig_UnparseableFails(t *testing.T) {
	path := writeFile(t, t.TempDir(), "limits.yaml", "{unclosed")
	_, err := LoadDynamicConfig(path)
	assert.Error(t, err)
}

func TestDynamicHolder_SetAndCurrent(t *testing.T) {
	holder := NewDynamicHolder(nil)
	assert.Equal(t, DefaultDynamicConfig(), holder.Current())

	next := DefaultDynamicConfig()
	next.WebSocket.MaxConnectionsPerUser = 42
	holder.Set(next)
	assert.Equal(t, 42, holder.Current().WebSocket.MaxConnectionsPerUser)

	// nil is ignored
	holder.Set(nil)
	assert.Equal(t, 42, holder.Current().WebSocket.MaxConnectionsPerUser)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "limits.json", `{"websocket":{"maxConnectionsPerUser":2}}`)

	initial, err := LoadDynamicConfig(path)
	require.NoError(t, err)
	holder := NewDynamicHolder(initial)

	watcher, err := NewWatcher(path, holder, zap.NewNop())
	require.NoError(t, err)
	go watcher.Run()
	defer watcher.Stop()

	writeFile(t, dir, "limits.json", `{"websocket":{"maxConnectionsPerUser":9}}`)

	require.Eventually(t, func() bool {
		return holder.Current().WebSocket.MaxConnectionsPerUser == 9
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_KeepsPreviousOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "limits.yaml", `{"websocket":{"maxConnectionsPerUser":2}}`)

	initial, err := LoadDynamicConfig(path)
	require.NoError(t, err)
	holder := NewDynamicHolder(initial)

	watcher, err := NewWatcher(path, holder, zap.NewNop())
	require.NoError(t, err)
	go watcher.Run()
	defer watcher.Stop()

	writeFile(t, dir, "limits.yaml", "{unclosed")

	// The broken file never replaces the active configuration
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 2, holder.Current().WebSocket.MaxConnectionsPerUser)
}
