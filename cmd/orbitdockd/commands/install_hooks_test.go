package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexOfOrbitDockEntry_FindsExistingEntry(t *testing.T) {
	entries := []any{
		map[string]any{
			"hooks": []any{
				map[string]any{"type": "command", "command": "/some/other/hook.sh", "async": true},
			},
		},
		map[string]any{
			"hooks": []any{
				map[string]any{"type": "command", "command": "/home/u/.local/share/orbitdock/hooks/orbitdock-hook.sh session_start", "async": true},
			},
		},
	}
	assert.Equal(t, 1, indexOfOrbitDockEntry(entries))
}

func TestIndexOfOrbitDockEntry_NoMatch(t *testing.T) {
	entries := []any{
		map[string]any{
			"hooks": []any{
				map[string]any{"type": "command", "command": "/some/other/hook.sh", "async": true},
			},
		},
	}
	assert.Equal(t, -1, indexOfOrbitDockEntry(entries))
}

func TestRenderHookScript_SubstitutesPlaceholders(t *testing.T) {
	script := renderHookScript("http://127.0.0.1:4756", "/tmp/spool", "secret-token")
	assert.Contains(t, script, `server_url="http://127.0.0.1:4756"`)
	assert.Contains(t, script, `spool_dir="/tmp/spool"`)
	assert.Contains(t, script, `auth_token="secret-token"`)
}
