package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdel12/orbitdock/internal/protocol"
)

func TestLoad_NoFiles_ReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ORBITDOCK_BIND_ADDR", "")
	t.Setenv("ORBITDOCK_AUTH_TOKEN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4756", cfg.BindAddr)
}

func TestLoad_ProjectConfig_OverridesGlobal(t *testing.T) {
	globalDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", globalDir)
	require.NoError(t, os.MkdirAll(filepath.Join(globalDir, "orbitdock"), 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(globalDir, "orbitdock", "orbitdock.jsonc"),
		[]byte(`{"bind_addr": "0.0.0.0:9000"} // global default`), 0644,
	))

	projectDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, ".orbitdock"), 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(projectDir, ".orbitdock", "orbitdock.jsonc"),
		[]byte(`{"bind_addr": "127.0.0.1:5050"}`), 0644,
	))

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5050", cfg.BindAddr)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ORBITDOCK_AUTH_TOKEN", "env-token")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.AuthToken)
}

func TestMergeConfig_ApprovalAutoApproveUnion(t *testing.T) {
	target := defaultConfig()
	target.Approval.AutoApprove[protocol.ApprovalExec] = true

	source := &Config{Approval: ApprovalDefaults{AutoApprove: map[protocol.ApprovalType]bool{
		protocol.ApprovalPatch: true,
	}}}

	mergeConfig(target, source)

	assert.True(t, target.Approval.AutoApprove[protocol.ApprovalExec])
	assert.True(t, target.Approval.AutoApprove[protocol.ApprovalPatch])
}
