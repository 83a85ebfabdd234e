// Command orbitdockd is OrbitDock's daemon: it serves the HTTP/WebSocket
// API that drives and observes AI coding agent sessions.
package main

import (
	"fmt"
	"os"

	"github.com/robdel12/orbitdock/cmd/orbitdockd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
