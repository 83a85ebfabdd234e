package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robdel12/orbitdock/internal/config"
)

// claudeHookTypes maps each Claude Code settings.json hook key to the
// event name passed as the hook script's first argument.
var claudeHookTypes = []struct {
	key   string
	event string
}{
	{"SessionStart", "session_start"},
	{"SessionEnd", "session_end"},
	{"UserPromptSubmit", "status_event"},
	{"Stop", "status_event"},
	{"Notification", "status_event"},
	{"PreCompact", "status_event"},
	{"PreToolUse", "tool_event"},
	{"PostToolUse", "tool_event"},
	{"PostToolUseFailure", "tool_event"},
	{"PermissionRequest", "tool_event"},
	{"SubagentStart", "subagent_event"},
	{"SubagentStop", "subagent_event"},
}

var installHooksSettingsPath string

var installHooksCmd = &cobra.Command{
	Use:   "install-hooks",
	Short: "Merge OrbitDock hook entries into Claude Code's settings.json",
	RunE:  runInstallHooks,
}

func init() {
	installHooksCmd.Flags().StringVar(&installHooksSettingsPath, "settings", "", "Path to settings.json (default: ~/.claude/settings.json)")
}

func runInstallHooks(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()
	hookScript := paths.HookScriptPath()
	if _, err := os.Stat(hookScript); err != nil {
		return fmt.Errorf("hook script not found at %s: run 'orbitdockd init' first", hookScript)
	}

	settingsPath := installHooksSettingsPath
	if settingsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		settingsPath = filepath.Join(home, ".claude", "settings.json")
	}

	settings := map[string]any{}
	if data, err := os.ReadFile(settingsPath); err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parsing %s: %w", settingsPath, err)
		}

		backup := settingsPath + ".bak"
		if err := os.WriteFile(backup, data, 0644); err != nil {
			return fmt.Errorf("backing up %s: %w", settingsPath, err)
		}
		fmt.Printf("  Backed up %s -> %s\n", settingsPath, backup)
	} else if !os.IsNotExist(err) {
		return err
	}

	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		hooks = map[string]any{}
	}

	var added, updated []string
	for _, h := range claudeHookTypes {
		command := fmt.Sprintf("%s %s", hookScript, h.event)
		entry := map[string]any{
			"hooks": []any{
				map[string]any{"type": "command", "command": command, "async": true},
			},
		}

		existing, _ := hooks[h.key].([]any)
		if idx := indexOfOrbitDockEntry(existing); idx >= 0 {
			existing[idx] = entry
			updated = append(updated, h.key)
		} else {
			existing = append(existing, entry)
			added = append(added, h.key)
		}
		hooks[h.key] = existing
	}
	settings["hooks"] = hooks

	if err := os.MkdirAll(filepath.Dir(settingsPath), 0755); err != nil {
		return err
	}
	formatted, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(settingsPath, formatted, 0644); err != nil {
		return err
	}

	fmt.Println()
	if len(added) > 0 {
		fmt.Printf("  Added %d hook(s): %s\n", len(added), strings.Join(added, ", "))
	}
	if len(updated) > 0 {
		fmt.Printf("  Updated %d hook(s): %s\n", len(updated), strings.Join(updated, ", "))
	}
	fmt.Printf("\n  Settings written to %s\n\n", settingsPath)
	return nil
}

// indexOfOrbitDockEntry finds an already-installed OrbitDock hook entry in
// a Claude Code hook array, so re-running install-hooks updates in place
// instead of appending a duplicate.
func indexOfOrbitDockEntry(entries []any) int {
	for i, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		hooksArr, _ := entry["hooks"].([]any)
		for _, h := range hooksArr {
			hookMap, ok := h.(map[string]any)
			if !ok {
				continue
			}
			cmd, _ := hookMap["command"].(string)
			if strings.Contains(cmd, "orbitdock") {
				return i
			}
		}
	}
	return -1
}
