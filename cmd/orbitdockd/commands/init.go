package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robdel12/orbitdock/internal/config"
	"github.com/robdel12/orbitdock/internal/secrets"
	"github.com/robdel12/orbitdock/internal/storage"
)

var initServerURL string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a fresh machine: data dirs, database, hook script",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initServerURL, "server-url", "http://127.0.0.1:4756", "URL the rendered hook script reports events to")
}

func runInit(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return fmt.Errorf("creating data directories: %w", err)
	}
	if err := os.MkdirAll(paths.SpoolDir(), 0755); err != nil {
		return fmt.Errorf("creating spool directory: %w", err)
	}
	fmt.Printf("  Created %s/\n", paths.Data)

	ctx := context.Background()
	store, err := storage.Open(ctx, paths.DatabasePath())
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	store.Close()
	fmt.Printf("  Database initialized at %s\n", paths.DatabasePath())

	keyring, err := secrets.Open(os.Getenv("ORBITDOCK_ENCRYPTION_KEY"), paths.EncryptionKeyPath())
	if err != nil {
		return fmt.Errorf("initializing encryption key: %w", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.AuthToken == "" {
		token, err := randomToken()
		if err != nil {
			return fmt.Errorf("generating auth token: %w", err)
		}
		encrypted, err := keyring.Encrypt(token)
		if err != nil {
			return fmt.Errorf("encrypting auth token: %w", err)
		}
		cfg.AuthToken = encrypted
		if err := config.Save(cfg, config.GlobalConfigPath()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("  Generated auth token, saved to %s\n", config.GlobalConfigPath())
	}

	plainToken, err := keyring.Decrypt(cfg.AuthToken)
	if err != nil {
		return fmt.Errorf("decrypting auth token: %w", err)
	}

	rendered := renderHookScript(initServerURL, paths.SpoolDir(), plainToken)
	if err := os.MkdirAll(filepath.Dir(paths.HookScriptPath()), 0755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}
	if err := os.WriteFile(paths.HookScriptPath(), []byte(rendered), 0755); err != nil {
		return fmt.Errorf("writing hook script: %w", err)
	}
	fmt.Printf("  Hook script installed to %s\n", paths.HookScriptPath())

	if ip := detectTailscaleIP(); ip != "" {
		fmt.Println()
		fmt.Printf("  Tailscale detected! Your IP: %s\n", ip)
		fmt.Println("  For remote access: orbitdockd start --bind 0.0.0.0:4756")
	}

	fmt.Println()
	fmt.Println("  Next steps:")
	fmt.Println("    1. Install Claude Code hooks:  orbitdockd install-hooks")
	fmt.Println("    2. Start the server:           orbitdockd start")
	fmt.Println("    3. Install as a service:       orbitdockd install-service --enable")
	fmt.Println()
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// detectTailscaleIP best-effort shells out to the tailscale CLI; absence
// or failure is silent since it is purely a convenience hint.
func detectTailscaleIP() string {
	out, err := exec.Command("tailscale", "ip", "-4").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
