// Package commands provides orbitdockd's CLI commands.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/robdel12/orbitdock/internal/logging"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	printLogs bool
	logLevel  string
	logFile   bool
)

var rootCmd = &cobra.Command{
	Use:   "orbitdockd",
	Short: "OrbitDock - mission control for AI coding agents",
	Long: `orbitdockd runs the OrbitDock daemon: it spawns and supervises
Codex and Claude coding-agent sessions, persists their transcripts, and
exposes them over a websocket/HTTP API for any number of clients.

Run 'orbitdockd init' once on a fresh machine, then 'orbitdockd start'.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()

		logCfg := logging.DefaultConfig()
		logCfg.Level = logging.ParseLevel(logLevel)
		logCfg.Pretty = printLogs
		logCfg.LogToFile = logFile
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to a timestamped file")

	rootCmd.SetVersionTemplate("orbitdockd " + Version + " (" + BuildTime + ")\n")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(installHooksCmd)
	rootCmd.AddCommand(installServiceCmd)
	rootCmd.AddCommand(startCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
