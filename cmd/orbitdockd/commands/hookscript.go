package commands

import "fmt"

// renderHookScript produces the shell script Claude Code invokes for each
// configured hook event. It writes the hook's stdin JSON, tagged with the
// event name passed as $1, into the spool directory as a timestamped file
// for the daemon to ingest later — the spool-consuming side of this is out
// of scope for the core session-transition surface (see DESIGN.md), but
// the hook wiring itself is real.
func renderHookScript(serverURL, spoolDir, authToken string) string {
	return fmt.Sprintf(`#!/bin/sh
# Installed by orbitdockd init. Do not edit by hand; re-run
# 'orbitdockd init' to regenerate.
set -eu

event="$1"
spool_dir="%s"
server_url="%s"
auth_token="%s"

mkdir -p "$spool_dir"
stamp=$(date +%%s%%N)
out="$spool_dir/${stamp}.${event}.json"

cat > "$out"

# Best-effort POST; any failure is ignored. orbitdockd itself neither
# serves this path nor reads the spool directory.
curl -fsS -X POST "$server_url/hooks/claude/$event" \
	-H "Authorization: Bearer $auth_token" \
	-H "Content-Type: application/json" \
	--data-binary "@$out" >/dev/null 2>&1 || true
`, spoolDir, serverURL, authToken)
}
