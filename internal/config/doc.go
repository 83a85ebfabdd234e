// Package config loads OrbitDock's server configuration and resolves the
// XDG-style paths it stores data under.
//
// Config is read from a global file at GlobalConfigPath(), then a
// project-local file at ProjectConfigPath(directory) if a directory was
// given, then environment variables, each layer overriding the last.
// Files are JSONC: // line comments and /* block */ comments are stripped
// before parsing, so operators can annotate their config in place.
package config
