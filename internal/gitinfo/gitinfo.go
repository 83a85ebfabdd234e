// Package gitinfo resolves lightweight git metadata for a session's
// working directory. It shells out to the git binary rather than using a
// Go git library, matching the original implementation's approach: git
// already is the authority on this, and a subprocess is simpler and more
// correct than re-implementing ref resolution.
package gitinfo

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// ResolveBranch returns the current branch name for the repository at
// path, or "" if path is not inside a git repository or the lookup fails.
func ResolveBranch(path string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = path
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	branch := strings.TrimSpace(string(out))
	if branch == "HEAD" {
		return "" // detached head, no meaningful branch name
	}
	return branch
}
