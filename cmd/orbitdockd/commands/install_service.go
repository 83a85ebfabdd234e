package commands

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robdel12/orbitdock/internal/config"
)

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>com.orbitdock.daemon</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{BINARY_PATH}}</string>
		<string>start</string>
		<string>--bind</string>
		<string>{{BIND_ADDR}}</string>
		<string>--data-dir</string>
		<string>{{DATA_DIR}}</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>{{DATA_DIR}}/logs/launchd-stdout.log</string>
	<key>StandardErrorPath</key>
	<string>{{DATA_DIR}}/logs/launchd-stderr.log</string>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=OrbitDock daemon - mission control for AI coding agents
After=network.target

[Service]
Type=simple
ExecStart={{BINARY_PATH}} start --bind {{BIND_ADDR}} --data-dir {{DATA_DIR}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

var (
	installServiceBind   string
	installServiceEnable bool
)

var installServiceCmd = &cobra.Command{
	Use:   "install-service",
	Short: "Generate and optionally enable a launchd/systemd user service",
	RunE:  runInstallService,
}

func init() {
	installServiceCmd.Flags().StringVar(&installServiceBind, "bind", "127.0.0.1:4756", "Address the installed service binds to")
	installServiceCmd.Flags().BoolVar(&installServiceEnable, "enable", false, "Load/enable the service immediately")
}

func runInstallService(cmd *cobra.Command, args []string) error {
	binaryPath, err := os.Executable()
	if err != nil {
		return err
	}
	dataDir := config.GetPaths().Data

	if runtime.GOOS == "darwin" {
		return installLaunchd(binaryPath, installServiceBind, dataDir, installServiceEnable)
	}
	return installSystemd(binaryPath, installServiceBind, dataDir, installServiceEnable)
}

func renderServiceTemplate(tmpl, binaryPath, bind, dataDir string) string {
	r := strings.NewReplacer(
		"{{BINARY_PATH}}", binaryPath,
		"{{BIND_ADDR}}", bind,
		"{{DATA_DIR}}", dataDir,
	)
	return r.Replace(tmpl)
}

func installLaunchd(binaryPath, bind, dataDir string, enable bool) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	agentsDir := filepath.Join(home, "Library", "LaunchAgents")
	if err := os.MkdirAll(agentsDir, 0755); err != nil {
		return err
	}

	plistPath := filepath.Join(agentsDir, "com.orbitdock.daemon.plist")
	rendered := renderServiceTemplate(launchdTemplate, binaryPath, bind, dataDir)
	if err := os.WriteFile(plistPath, []byte(rendered), 0644); err != nil {
		return err
	}
	fmt.Printf("  Wrote %s\n", plistPath)

	if enable {
		_ = exec.Command("launchctl", "unload", plistPath).Run()
		if out, err := exec.Command("launchctl", "load", plistPath).CombinedOutput(); err != nil {
			fmt.Printf("  Warning: launchctl load failed: %s\n", strings.TrimSpace(string(out)))
		} else {
			fmt.Println("  Service loaded and started")
		}
	} else {
		fmt.Println()
		fmt.Println("  To enable:")
		fmt.Printf("    launchctl load %s\n", plistPath)
	}
	fmt.Println()
	return nil
}

func installSystemd(binaryPath, bind, dataDir string, enable bool) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	systemdDir := filepath.Join(home, ".config", "systemd", "user")
	if err := os.MkdirAll(systemdDir, 0755); err != nil {
		return err
	}

	unitPath := filepath.Join(systemdDir, "orbitdockd.service")
	rendered := renderServiceTemplate(systemdTemplate, binaryPath, bind, dataDir)
	if err := os.WriteFile(unitPath, []byte(rendered), 0644); err != nil {
		return err
	}
	fmt.Printf("  Wrote %s\n", unitPath)

	_ = exec.Command("systemctl", "--user", "daemon-reload").Run()

	if enable {
		if out, err := exec.Command("systemctl", "--user", "enable", "--now", "orbitdockd.service").CombinedOutput(); err != nil {
			fmt.Printf("  Warning: systemctl enable failed: %s\n", strings.TrimSpace(string(out)))
		} else {
			fmt.Println("  Service enabled and started")
		}
	} else {
		fmt.Println()
		fmt.Println("  To enable:")
		fmt.Println("    systemctl --user enable --now orbitdockd.service")
	}
	fmt.Println()
	return nil
}
