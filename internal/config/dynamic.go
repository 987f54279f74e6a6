package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DynamicConfig represents runtime-changeable configuration. It is loaded
// from a YAML or JSON file and reloaded on change by the Watcher.
type DynamicConfig struct {
	WebSocket WebSocketLimits `json:"websocket" yaml:"websocket"`
}

// WebSocketLimits holds tunable limits for the realtime layer.
type WebSocketLimits struct {
	// MaxConnectionsPerUser caps simultaneous sockets per identity; zero
	// means unlimited.
	MaxConnectionsPerUser int `json:"maxConnectionsPerUser" yaml:"maxConnectionsPerUser"`
	// SendQueueSize is the per-connection outbound buffer.
	SendQueueSize int `json:"sendQueueSize" yaml:"sendQueueSize"`
	// MaxMessageBytes bounds a single inbound frame.
	MaxMessageBytes int64 `json:"maxMessageBytes" yaml:"maxMessageBytes"`
}

// DefaultDynamicConfig returns the limits used when no file is configured.
func DefaultDynamicConfig() *DynamicConfig {
	return &DynamicConfig{
		WebSocket: WebSocketLimits{
			MaxConnectionsPerUser: 10,
			SendQueueSize:         256,
			MaxMessageBytes:       512 * 1024,
		},
	}
}

// LoadDynamicConfig reads a dynamic configuration file. The format is
// chosen by extension; missing fields fall back to defaults.
func LoadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dynamic config: %w", err)
	}

	cfg := DefaultDynamicConfig()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse dynamic config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse dynamic config: %w", err)
		}
	}

	cfg.normalize()
	return cfg, nil
}

func (c *DynamicConfig) normalize() {
	defaults := DefaultDynamicConfig()
	if c.WebSocket.SendQueueSize <= 0 {
		c.WebSocket.SendQueueSize = defaults.WebSocket.SendQueueSize
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		c.WebSocket.MaxMessageBytes = defaults.WebSocket.MaxMessageBytes
	}
	if c.WebSocket.MaxConnectionsPerUser < 0 {
		c.WebSocket.MaxConnectionsPerUser = 0
	}
}

// DynamicHolder provides synchronized access to the current dynamic
// configuration for readers on hot paths.
type DynamicHolder struct {
	mu      sync.RWMutex
	current *DynamicConfig
}

// NewDynamicHolder creates a holder seeded with the given configuration.
func NewDynamicHolder(cfg *DynamicConfig) *DynamicHolder {
	if cfg == nil {
		cfg = DefaultDynamicConfig()
	}
	return &DynamicHolder{current: cfg}
}

// Current returns the active configuration.
func (h *DynamicHolder) Current() *DynamicConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Set replaces the active configuration.
func (h *DynamicHolder) Set(cfg *DynamicConfig) {
	if cfg == nil {
		return
	}
	h.mu.Lock()
	h.current = cfg
	h.mu.Unlock()
}
