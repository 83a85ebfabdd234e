// Package config provides OrbitDock's path layout and configuration file
// loading, adapted from the teacher's XDG-aware path helpers.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard OS-specific paths for OrbitDock's data.
type Paths struct {
	Data   string // ~/.local/share/orbitdock
	Config string // ~/.config/orbitdock
	Cache  string // ~/.cache/orbitdock
	State  string // ~/.local/state/orbitdock
}

// GetPaths returns the standard paths for OrbitDock's data, honoring XDG
// environment variables where set.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "orbitdock"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "orbitdock"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "orbitdock"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "orbitdock"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath returns the path to the SQLite database file.
func (p *Paths) DatabasePath() string {
	return filepath.Join(p.Data, "orbitdock.db")
}

// EncryptionKeyPath returns the path to the config-secret encryption key
// file, used when no ORBITDOCK_ENCRYPTION_KEY environment variable is set.
func (p *Paths) EncryptionKeyPath() string {
	return filepath.Join(p.Data, "encryption.key")
}

// HookScriptPath returns the path to the rendered Claude Code hook script
// that install-hooks points ~/.claude/settings.json at.
func (p *Paths) HookScriptPath() string {
	return filepath.Join(p.Data, "hooks", "orbitdock-hook.sh")
}

// SpoolDir returns the directory the hook script drops event files into
// for the daemon to ingest.
func (p *Paths) SpoolDir() string {
	return filepath.Join(p.Data, "spool")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "cache")
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "orbitdock.jsonc")
}

// ProjectConfigPath returns the path to a project-local config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".orbitdock", "orbitdock.jsonc")
}
