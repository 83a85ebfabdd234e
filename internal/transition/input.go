// Package transition implements OrbitDock's core state-transition function:
// a pure, deterministic fold from (SessionState, Input) to (SessionState,
// []Effect) with no I/O of its own. The session actor is the only caller;
// everything this package needs is passed in, including the clock.
package transition

import "github.com/robdel12/orbitdock/internal/protocol"

// Input is the closed sum type of everything that can move a session's
// state forward. Exactly one of these marker-implementing types is ever
// boxed in an Input value; Apply exhaustively type-switches over them.
type Input interface {
	isInput()
}

// TurnStarted marks the connector beginning a new turn.
type TurnStarted struct{}

// TurnCompleted marks the connector finishing a turn cleanly.
type TurnCompleted struct{}

// TurnAborted marks the connector abandoning a turn.
type TurnAborted struct {
	Reason string
}

// MessageCreated appends a new transcript entry.
type MessageCreated struct {
	Message protocol.Message
}

// MessageUpdated patches an existing transcript entry by id. Unknown ids
// are a no-op: the transition function never surfaces lookup failure for
// MessageUpdated because the connector can race a message being pruned.
type MessageUpdated struct {
	MessageID string
	Changes   protocol.MessageChanges
}

// ApprovalRequested asks the session to surface a pending approval. If one
// is already pending it is replaced: the newer request wins.
type ApprovalRequested struct {
	Request protocol.ApprovalRequest
}

// ApprovalDecided resolves the pending approval, if any, with a decision
// from a human. A decision with no matching pending request is a no-op.
type ApprovalDecided struct {
	RequestID string
	Decision  protocol.ApprovalDecision
}

// TokensUpdated replaces the session's token accounting.
type TokensUpdated struct {
	Tokens protocol.TokenUsage
}

// DiffUpdated replaces the aggregated working-tree diff.
type DiffUpdated struct {
	Diff string
}

// PlanUpdated replaces the current plan text.
type PlanUpdated struct {
	Plan string
}

// SessionEndedByConnector marks the connector itself ending the session.
type SessionEndedByConnector struct {
	Reason string
}

// ConnectorErrored surfaces a connector-side error as a transcript entry
// and nudges work status to Waiting.
type ConnectorErrored struct {
	Message string
}

// UserMessageSubmitted is a human-originated message entering the turn.
type UserMessageSubmitted struct {
	Content string
}

// CustomNameSet renames the session.
type CustomNameSet struct {
	Name string
}

// EndRequested is a local request (not from the connector) to end the
// session, e.g. from an HTTP call.
type EndRequested struct {
	Reason string
}

// ModelSet updates the model a session's connector is driving.
type ModelSet struct {
	Model string
}

// TranscriptPathSet records where the connector is writing its raw
// transcript, once known.
type TranscriptPathSet struct {
	Path string
}

// ProjectNameSet updates the human-facing project label.
type ProjectNameSet struct {
	Name string
}

// ConfigUpdated changes the session's approval policy and/or sandbox mode.
// A nil field leaves that setting unchanged; a non-nil field (including an
// empty string) sets it, matching UpdateConfig's partial-update contract.
type ConfigUpdated struct {
	ApprovalPolicy *string
	SandboxMode    *string
}

// CodexModeSet records whether OrbitDock drives a Codex session directly
// or is only observing it.
type CodexModeSet struct {
	Mode protocol.CodexIntegrationMode
}

// ForkedFromSet records the session this one was forked from.
type ForkedFromSet struct {
	SourceSessionID string
}

// LastToolSet records the most recent tool name the connector reported
// running, surfaced as a lightweight activity indicator.
type LastToolSet struct {
	Tool string
}

func (TurnStarted) isInput()            {}
func (TurnCompleted) isInput()          {}
func (TurnAborted) isInput()            {}
func (MessageCreated) isInput()         {}
func (MessageUpdated) isInput()         {}
func (ApprovalRequested) isInput()      {}
func (ApprovalDecided) isInput()        {}
func (TokensUpdated) isInput()          {}
func (DiffUpdated) isInput()            {}
func (PlanUpdated) isInput()            {}
func (SessionEndedByConnector) isInput() {}
func (ConnectorErrored) isInput()       {}
func (UserMessageSubmitted) isInput()   {}
func (CustomNameSet) isInput()          {}
func (EndRequested) isInput()           {}
func (ModelSet) isInput()               {}
func (TranscriptPathSet) isInput()      {}
func (ProjectNameSet) isInput()         {}
func (ConfigUpdated) isInput()          {}
func (CodexModeSet) isInput()           {}
func (ForkedFromSet) isInput()          {}
func (LastToolSet) isInput()            {}
