package naming

import (
	"context"
	"strings"
)

const maxHeuristicTitleLength = 50

// HeuristicProposer is the default Proposer used when no model-backed
// naming provider is configured: the core deliberately never runs a model
// itself (spec Non-goals), so this takes the first non-empty line of the
// transcript candidate as the name, truncating the way go-opencode's
// ensureTitle truncates a model's response.
func HeuristicProposer(ctx context.Context, sessionID string, transcript string) (string, error) {
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > maxHeuristicTitleLength {
			line = strings.TrimSpace(line[:maxHeuristicTitleLength-1]) + "…"
		}
		return line, nil
	}
	return "", nil
}
