package bridge

import (
	"time"

	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/transition"
)

// ToInput translates a connector event into the transition function's
// Input vocabulary, stamping any timestamp fields from now rather than
// trusting the connector's own clock (transition.Apply never reads one
// either, matching spec.md §4.2's "timestamps are always assigned from
// the clock argument").
func ToInput(event ConnectorEvent, sessionID string, now time.Time) transition.Input {
	switch e := event.(type) {
	case TurnStarted:
		return transition.TurnStarted{}
	case TurnCompleted:
		return transition.TurnCompleted{}
	case TurnAborted:
		return transition.TurnAborted{Reason: e.Reason}
	case MessageCreated:
		return transition.MessageCreated{Message: e.Message}
	case MessageUpdated:
		return transition.MessageUpdated{
			MessageID: e.MessageID,
			Changes: protocol.MessageChanges{
				Content:    toStringChange(e.Content),
				ToolOutput: toStringChange(e.ToolOutput),
				IsError:    e.IsError,
				DurationMS: e.DurationMS,
			},
		}
	case ApprovalRequested:
		return transition.ApprovalRequested{Request: protocol.ApprovalRequest{
			ID:          e.RequestID,
			SessionID:   sessionID,
			Type:        e.Type,
			Command:     derefString(e.Command),
			FilePath:    derefString(e.FilePath),
			Diff:        derefString(e.Diff),
			Question:    derefString(e.Question),
			RequestedAt: now,
		}}
	case TokensUpdated:
		return transition.TokensUpdated{Tokens: e.Tokens}
	case DiffUpdated:
		return transition.DiffUpdated{Diff: e.Diff}
	case PlanUpdated:
		return transition.PlanUpdated{Plan: e.Plan}
	case SessionEnded:
		return transition.SessionEndedByConnector{Reason: e.Reason}
	case Error:
		return transition.ConnectorErrored{Message: e.Message}
	default:
		return transition.ConnectorErrored{Message: "bridge: unrecognized connector event"}
	}
}

// toStringChange wraps an optional field into MessageChanges' **string
// "set" form. A nil input (no reported change) stays nil; anything else,
// including an empty string, becomes an explicit set.
func toStringChange(s *string) **string {
	if s == nil {
		return nil
	}
	v := *s
	pv := &v
	return &pv
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
