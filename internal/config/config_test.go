package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{ServerURL: "http://chat.example.com/api", DefaultProfile: "work"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ServerURL != "http://chat.example.com/api" {
		t.Errorf("ServerURL = %q, want %q", loaded.ServerURL, "http://chat.example.com/api")
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerURL != "http://localhost:8080/api" {
		t.Errorf("ServerURL = %q, want default", cfg.ServerURL)
	}
	if cfg.Session.HeartbeatIntervalMs != 30000 {
		t.Errorf("HeartbeatIntervalMs = %d, want 30000", cfg.Session.HeartbeatIntervalMs)
	}
	if cfg.Session.ReconnectIntervalMs != 3000 {
		t.Errorf("ReconnectIntervalMs = %d, want 3000", cfg.Session.ReconnectIntervalMs)
	}
	if cfg.Session.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", cfg.Session.MaxReconnectAttempts)
	}
	if cfg.Session.ReconcileWindowMs != 5000 {
		t.Errorf("ReconcileWindowMs = %d, want 5000", cfg.Session.ReconcileWindowMs)
	}
	if cfg.Session.OfflineLoadDelayMs != 1000 {
		t.Errorf("OfflineLoadDelayMs = %d, want 1000", cfg.Session.OfflineLoadDelayMs)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "server_url = \"http://10.0.0.2:9090/api\"\n\n[session]\nreconcile_window_ms = 2500\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerURL != "http://10.0.0.2:9090/api" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Session.ReconcileWindowMs != 2500 {
		t.Errorf("ReconcileWindowMs = %d, want 2500", cfg.Session.ReconcileWindowMs)
	}
	if cfg.Session.HeartbeatIntervalMs != 30000 {
		t.Errorf("HeartbeatIntervalMs = %d, want default 30000", cfg.Session.HeartbeatIntervalMs)
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
