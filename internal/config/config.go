package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/robdel12/orbitdock/internal/protocol"
)

// Config is OrbitDock's server configuration: bind address, storage
// location, auth token and the default approval policy new sessions start
// with. Loaded from JSONC files with // and /* */ comments, same format
// the teacher's config uses for its agent/provider files.
type Config struct {
	BindAddr  string           `json:"bind_addr"`
	DataDir   string           `json:"data_dir"`
	AuthToken string           `json:"auth_token"`
	CORSOrigins []string       `json:"cors_origins,omitempty"`
	Approval  ApprovalDefaults `json:"approval"`
}

// ApprovalDefaults controls which approval types a session can auto-decide
// without prompting a human, and any always-allow command patterns.
type ApprovalDefaults struct {
	AutoApprove     map[protocol.ApprovalType]bool `json:"auto_approve,omitempty"`
	AllowedCommands []string                        `json:"allowed_commands,omitempty"`
}

func defaultConfig() *Config {
	return &Config{
		BindAddr: "127.0.0.1:4756",
		DataDir:  GetPaths().Data,
		Approval: ApprovalDefaults{AutoApprove: map[protocol.ApprovalType]bool{}},
	}
}

// Load builds a Config from, in priority order: the global config file,
// a project-local config file, then environment variable overrides.
func Load(directory string) (*Config, error) {
	cfg := defaultConfig()

	if err := loadConfigFile(GlobalConfigPath(), cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if directory != "" {
		if err := loadConfigFile(ProjectConfigPath(directory), cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	data = jsonc.ToJSON(data)

	var file Config
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	mergeConfig(cfg, &file)
	return nil
}

func mergeConfig(target, source *Config) {
	if source.BindAddr != "" {
		target.BindAddr = source.BindAddr
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.AuthToken != "" {
		target.AuthToken = source.AuthToken
	}
	if len(source.CORSOrigins) > 0 {
		target.CORSOrigins = source.CORSOrigins
	}
	if source.Approval.AutoApprove != nil {
		if target.Approval.AutoApprove == nil {
			target.Approval.AutoApprove = map[protocol.ApprovalType]bool{}
		}
		for k, v := range source.Approval.AutoApprove {
			target.Approval.AutoApprove[k] = v
		}
	}
	if len(source.Approval.AllowedCommands) > 0 {
		target.Approval.AllowedCommands = append(target.Approval.AllowedCommands, source.Approval.AllowedCommands...)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORBITDOCK_BIND_ADDR"); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv("ORBITDOCK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ORBITDOCK_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
}

// Save writes cfg as indented JSON to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
