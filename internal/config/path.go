package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDataDir picks the per-host base directory used when a component
// is enabled without an explicit path. RINGLOG_HOME wins, then
// XDG_DATA_HOME, then the platform convention, then ~/.ringlog.
func DefaultDataDir() string {
	if v := os.Getenv("RINGLOG_HOME"); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ringlog")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./ringlog-data"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Ringlog")
	case "windows":
		return filepath.Join(home, "AppData", "Local", "Ringlog")
	}
	if writable("/var/lib") {
		return "/var/lib/ringlog"
	}
	return filepath.Join(home, ".ringlog")
}

// DefaultUploadDir is where the collector stores received files.
func DefaultUploadDir() string {
	return filepath.Join(DefaultDataDir(), "uploads")
}

func writable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.CreateTemp(dir, ".ringlog-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
