package creds

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wirechat.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wirechat")
}

// ProfileDir returns the profile-specific directory.
func ProfileDir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// RecordPath returns the persisted credential record path for a profile.
func RecordPath(name string) string {
	return filepath.Join(ProfileDir(name), "creds.json")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(ProfileDir(name), "logs")
}

// LogPath returns the client runtime log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wirechatd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureProfileDir creates the profile directory tree with 0700 perms.
func EnsureProfileDir(name string) error {
	for _, d := range []string{ProfileDir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
