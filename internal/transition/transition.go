package transition

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/robdel12/orbitdock/internal/protocol"
)

// Clock supplies the current time to Apply, injected so tests can fold
// Inputs deterministically instead of depending on a wall clock.
type Clock func() time.Time

// Apply folds one Input into state, returning the new state and any
// effects the caller should carry out. Apply never performs I/O, never
// reads a wall clock itself, and never panics on a well-formed Input: every
// case below is total over the SessionState it receives.
func Apply(state protocol.SessionState, input Input, now Clock) (protocol.SessionState, []Effect) {
	if state.Status == protocol.SessionEnded {
		return state, nil
	}

	switch in := input.(type) {
	case TurnStarted:
		state.WorkStatus = protocol.WorkWorking
		return touch(state, now)

	case TurnCompleted:
		state.WorkStatus = protocol.WorkWaiting
		return touch(state, now)

	case TurnAborted:
		msg := protocol.Message{
			ID:        ulid.Make().String(),
			SessionID: state.ID,
			Type:      protocol.MessageToolResult,
			Role:      protocol.RoleSystem,
			Content:   in.Reason,
			Timestamp: now(),
		}
		state.Messages = append(state.Messages, msg)
		state.WorkStatus = protocol.WorkWaiting
		state.Revision++
		state.LastActivityAt = now()
		return state, []Effect{
			Persist{Op: PersistOp{MessageAppend: &msg}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{MessageAppended: &msg}},
			NotifyRegistry{Summary: state.Summary()},
		}

	case MessageCreated:
		isFirstUserMessage := in.Message.Type == protocol.MessageUser && state.SummaryCandidate == "" && !hasUserMessage(state.Messages)
		state.Messages = append(state.Messages, in.Message)
		state.Revision++
		state.LastActivityAt = now()
		effects := []Effect{
			Persist{Op: PersistOp{MessageAppend: &in.Message}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{MessageAppended: &in.Message}},
		}
		if isFirstUserMessage {
			state.SummaryCandidate = in.Message.Content
			effects = append(effects, Persist{Op: PersistOp{SetSummary: &PersistSummary{
				SessionID: state.ID, Summary: state.SummaryCandidate,
			}}})
			if state.CustomName == "" {
				effects = append(effects, RequestNaming{SessionID: state.ID})
			}
		}
		return state, effects

	case MessageUpdated:
		idx := findMessage(state.Messages, in.MessageID)
		if idx < 0 {
			return state, nil
		}
		applyMessageChanges(&state.Messages[idx], in.Changes)
		state.Revision++
		state.LastActivityAt = now()
		return state, []Effect{
			Persist{Op: PersistOp{MessageUpdate: &PersistMessageUpdate{
				SessionID: state.ID, MessageID: in.MessageID, Changes: in.Changes,
			}}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{
				MessageUpdated: &protocol.MessageUpdate{MessageID: in.MessageID, Changes: in.Changes},
			}},
		}

	case ApprovalRequested:
		var effects []Effect
		if state.PendingApproval != nil {
			replaced := protocol.Message{
				ID:        ulid.Make().String(),
				SessionID: state.ID,
				Type:      protocol.MessageToolResult,
				Role:      protocol.RoleSystem,
				Content:   "approval request replaced by a newer one",
				Timestamp: now(),
			}
			state.Messages = append(state.Messages, replaced)
			state.Revision++
			effects = append(effects,
				Persist{Op: PersistOp{MessageAppend: &replaced}},
				Broadcast{Revision: state.Revision, Event: protocol.Event{MessageAppended: &replaced}},
			)
		}

		req := in.Request
		state.PendingApproval = &req
		state.WorkStatus = approvalWorkStatus(req.Type)
		state.Revision++
		state.LastActivityAt = now()
		effects = append(effects,
			Persist{Op: PersistOp{ApprovalCreate: &req}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{ApprovalRequested: &req}},
			NotifyRegistry{Summary: state.Summary()},
		)
		return state, effects

	case ApprovalDecided:
		if state.PendingApproval == nil || state.PendingApproval.ID != in.RequestID {
			return state, nil
		}
		resolved := *state.PendingApproval
		state.PendingApproval = nil
		if in.Decision == protocol.DecisionApprove {
			state.WorkStatus = protocol.WorkWorking
		} else {
			state.WorkStatus = protocol.WorkWaiting
		}
		state.Revision++
		state.LastActivityAt = now()
		history := protocol.ApprovalHistoryItem{
			ID: ulid.Make().String(), SessionID: state.ID, RequestID: resolved.ID, Type: resolved.Type,
			ToolName: resolved.ToolName, Command: resolved.Command, FilePath: resolved.FilePath,
			ProposedAmendment: resolved.ProposedAmendment,
			Decision:          in.Decision, CreatedAt: resolved.RequestedAt, DecidedAt: state.LastActivityAt,
		}
		return state, []Effect{
			Persist{Op: PersistOp{ApprovalResolved: &history}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{
				ApprovalResolved: &protocol.ApprovalResolved{RequestID: in.RequestID, Decision: in.Decision},
			}},
			NotifyRegistry{Summary: state.Summary()},
		}

	case TokensUpdated:
		state.Tokens = saturatingTokens(in.Tokens)
		state.Revision++
		state.LastActivityAt = now()
		tokens := state.Tokens
		return state, []Effect{
			Persist{Op: PersistOp{SessionUpdate: statePtr(state)}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{TokensUpdated: &tokens}},
		}

	case DiffUpdated:
		state.Diff = in.Diff
		state.Revision++
		state.LastActivityAt = now()
		diff := state.Diff
		return state, []Effect{
			Persist{Op: PersistOp{SessionUpdate: statePtr(state)}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{
				StateChanged: &protocol.StateChange{Summary: state.Summary(), Diff: &diff},
			}},
		}

	case PlanUpdated:
		state.Plan = in.Plan
		state.Revision++
		state.LastActivityAt = now()
		plan := state.Plan
		return state, []Effect{
			Persist{Op: PersistOp{SessionUpdate: statePtr(state)}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{
				StateChanged: &protocol.StateChange{Summary: state.Summary(), Plan: &plan},
			}},
		}

	case SessionEndedByConnector:
		return endSession(state, in.Reason, now)

	case EndRequested:
		return endSession(state, in.Reason, now)

	case ConnectorErrored:
		msg := protocol.Message{
			ID:        ulid.Make().String(),
			SessionID: state.ID,
			Type:      protocol.MessageToolResult,
			Role:      protocol.RoleSystem,
			Content:   in.Message,
			IsError:   true,
			Timestamp: now(),
		}
		state.Messages = append(state.Messages, msg)
		state.WorkStatus = protocol.WorkWaiting
		state.Revision++
		state.LastActivityAt = now()
		return state, []Effect{
			Persist{Op: PersistOp{MessageAppend: &msg}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{MessageAppended: &msg}},
		}

	case UserMessageSubmitted:
		msg := protocol.Message{
			ID:        ulid.Make().String(),
			SessionID: state.ID,
			Type:      protocol.MessageUser,
			Role:      protocol.RoleUser,
			Content:   in.Content,
			Timestamp: now(),
		}
		state.Messages = append(state.Messages, msg)
		state.WorkStatus = protocol.WorkWorking
		state.Revision++
		state.LastActivityAt = now()
		return state, []Effect{
			Persist{Op: PersistOp{MessageAppend: &msg}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{MessageAppended: &msg}},
		}

	case ModelSet:
		state.Model = in.Model
		return touch(state, now)

	case TranscriptPathSet:
		state.TranscriptPath = in.Path
		return touch(state, now)

	case ProjectNameSet:
		state.ProjectName = in.Name
		return touch(state, now)

	case ConfigUpdated:
		if in.ApprovalPolicy != nil {
			state.ApprovalPolicy = *in.ApprovalPolicy
		}
		if in.SandboxMode != nil {
			state.SandboxMode = *in.SandboxMode
		}
		return touch(state, now)

	case CodexModeSet:
		state.CodexMode = in.Mode
		return touch(state, now)

	case ForkedFromSet:
		state.ForkedFromSessionID = in.SourceSessionID
		return touch(state, now)

	case LastToolSet:
		state.LastTool = in.Tool
		return touch(state, now)

	case CustomNameSet:
		state.CustomName = in.Name
		state.Revision++
		state.LastActivityAt = now()
		return state, []Effect{
			Persist{Op: PersistOp{SetCustomName: &PersistCustomName{SessionID: state.ID, Name: in.Name}}},
			Broadcast{Revision: state.Revision, Event: protocol.Event{
				StateChanged: &protocol.StateChange{Summary: state.Summary()},
			}},
			NotifyRegistry{Summary: state.Summary()},
		}

	default:
		panic(fmt.Sprintf("transition: unhandled input type %T", input))
	}
}

func touch(state protocol.SessionState, now Clock) (protocol.SessionState, []Effect) {
	state.Revision++
	state.LastActivityAt = now()
	return state, []Effect{
		Persist{Op: PersistOp{SessionUpdate: statePtr(state)}},
		Broadcast{Revision: state.Revision, Event: protocol.Event{
			StateChanged: &protocol.StateChange{Summary: state.Summary()},
		}},
	}
}

func endSession(state protocol.SessionState, reason string, now Clock) (protocol.SessionState, []Effect) {
	state.Status = protocol.SessionEnded
	state.WorkStatus = protocol.WorkEnded
	state.EndedReason = reason
	state.PendingApproval = nil
	state.Revision++
	state.LastActivityAt = now()
	return state, []Effect{
		Persist{Op: PersistOp{SessionUpdate: statePtr(state)}},
		Broadcast{Revision: state.Revision, Event: protocol.Event{
			SessionEnded: &protocol.SessionEndedEvent{Reason: reason},
		}},
		NotifyRegistry{Summary: state.Summary()},
	}
}

func statePtr(s protocol.SessionState) *protocol.SessionState { return &s }

func hasUserMessage(msgs []protocol.Message) bool {
	for _, m := range msgs {
		if m.Type == protocol.MessageUser {
			return true
		}
	}
	return false
}

func findMessage(msgs []protocol.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func applyMessageChanges(m *protocol.Message, c protocol.MessageChanges) {
	if c.Content != nil {
		if *c.Content == nil {
			m.Content = ""
		} else {
			m.Content = **c.Content
		}
	}
	if c.ToolOutput != nil {
		if *c.ToolOutput == nil {
			m.ToolOutput = ""
		} else {
			m.ToolOutput = **c.ToolOutput
		}
	}
	if c.IsError != nil {
		m.IsError = *c.IsError
	}
	if c.DurationMS != nil {
		m.DurationMS = *c.DurationMS
	}
}

func approvalWorkStatus(t protocol.ApprovalType) protocol.WorkStatus {
	switch t {
	case protocol.ApprovalQuestion:
		return protocol.WorkQuestion
	default:
		return protocol.WorkPermission
	}
}

// saturatingTokens returns the reported usage unchanged: TokensUpdated
// replaces the session's counters, so a lower count than before (e.g. on
// a stream restart) replaces the previous one. The counters are unsigned
// and are never summed here, so they cannot go negative or overflow.
func saturatingTokens(next protocol.TokenUsage) protocol.TokenUsage {
	return next
}
