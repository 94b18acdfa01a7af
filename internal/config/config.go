package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wirechat/config.toml.
type Config struct {
	// ServerURL is the HTTP base URL of the chat backend, e.g.
	// "http://localhost:8080/api". The websocket URL is derived from it.
	ServerURL      string  `toml:"server_url"`
	DefaultProfile string  `toml:"default_profile"`
	Session        Session `toml:"session"`
}

// Session holds the realtime session tunables.
type Session struct {
	HeartbeatIntervalMs  int `toml:"heartbeat_interval_ms"`
	ReconnectIntervalMs  int `toml:"reconnect_interval_ms"`
	MaxReconnectAttempts int `toml:"max_reconnect_attempts"`
	ReconcileWindowMs    int `toml:"reconcile_window_ms"`
	OfflineLoadDelayMs   int `toml:"offline_load_delay_ms"`
}

// ApplyDefaults fills zero-valued fields with the shipped defaults.
func (c *Config) ApplyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8080/api"
	}
	s := &c.Session
	if s.HeartbeatIntervalMs == 0 {
		s.HeartbeatIntervalMs = 30000
	}
	if s.ReconnectIntervalMs == 0 {
		s.ReconnectIntervalMs = 3000
	}
	if s.MaxReconnectAttempts == 0 {
		s.MaxReconnectAttempts = 5
	}
	if s.ReconcileWindowMs == 0 {
		s.ReconcileWindowMs = 5000
	}
	if s.OfflineLoadDelayMs == 0 {
		s.OfflineLoadDelayMs = 1000
	}
}

// HeartbeatInterval returns the heartbeat period as a duration.
func (s Session) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatIntervalMs) * time.Millisecond
}

// ReconnectInterval returns the linear backoff base as a duration.
func (s Session) ReconnectInterval() time.Duration {
	return time.Duration(s.ReconnectIntervalMs) * time.Millisecond
}

// ReconcileWindow returns the optimistic-match window as a duration.
func (s Session) ReconcileWindow() time.Duration {
	return time.Duration(s.ReconcileWindowMs) * time.Millisecond
}

// OfflineLoadDelay returns the post-connect offline fetch delay.
func (s Session) OfflineLoadDelay() time.Duration {
	return time.Duration(s.OfflineLoadDelayMs) * time.Millisecond
}

// Load reads config from the given path and applies defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
