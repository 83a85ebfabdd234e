package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderServiceTemplate_Systemd_SubstitutesPlaceholders(t *testing.T) {
	out := renderServiceTemplate(systemdTemplate, "/usr/local/bin/orbitdockd", "0.0.0.0:4756", "/home/u/.local/share/orbitdock")
	assert.Contains(t, out, "ExecStart=/usr/local/bin/orbitdockd start --bind 0.0.0.0:4756 --data-dir /home/u/.local/share/orbitdock")
	assert.NotContains(t, out, "{{")
}

func TestRenderServiceTemplate_Launchd_SubstitutesPlaceholders(t *testing.T) {
	out := renderServiceTemplate(launchdTemplate, "/usr/local/bin/orbitdockd", "127.0.0.1:4756", "/Users/u/.local/share/orbitdock")
	assert.Contains(t, out, "<string>/usr/local/bin/orbitdockd</string>")
	assert.Contains(t, out, "<string>127.0.0.1:4756</string>")
	assert.NotContains(t, out, "{{")
}
