// Package bridge is OrbitDock's connector bridge: the only impure core
// component. It owns one direction of a connector's event stream and one
// direction of its action sink, translating between the two and the
// addressed session actor's command channel. Grounded on the original
// implementation's connectors::lib::ConnectorEvent/ApprovalType enums and
// codex_session.rs's event-loop/action-dispatch shape.
package bridge

import "github.com/robdel12/orbitdock/internal/protocol"

// ConnectorEvent is the closed sum type a connector reports on its event
// stream, restating original_source connectors::lib::ConnectorEvent as a
// Go interface sum instead of a Rust enum.
type ConnectorEvent interface {
	isConnectorEvent()
}

// TurnStarted marks the connector beginning a new turn.
type TurnStarted struct{}

// TurnCompleted marks the connector finishing a turn cleanly.
type TurnCompleted struct{}

// TurnAborted marks the connector abandoning a turn.
type TurnAborted struct {
	Reason string
}

// MessageCreated reports a brand-new transcript entry.
type MessageCreated struct {
	Message protocol.Message
}

// MessageUpdated reports an in-place patch to an existing entry. A nil
// field means the connector did not report a change to it.
type MessageUpdated struct {
	MessageID  string
	Content    *string
	ToolOutput *string
	IsError    *bool
	DurationMS *int64
}

// ApprovalRequested reports a new ask for human sign-off.
type ApprovalRequested struct {
	RequestID string
	Type      protocol.ApprovalType
	Command   *string
	FilePath  *string
	Diff      *string
	Question  *string
}

// TokensUpdated reports refreshed token accounting.
type TokensUpdated struct {
	Tokens protocol.TokenUsage
}

// DiffUpdated reports a refreshed aggregated working-tree diff.
type DiffUpdated struct {
	Diff string
}

// PlanUpdated reports refreshed plan text.
type PlanUpdated struct {
	Plan string
}

// SessionEnded reports the connector ending the session on its own.
type SessionEnded struct {
	Reason string
}

// Error reports a connector-side failure unrelated to a specific action.
type Error struct {
	Message string
}

func (TurnStarted) isConnectorEvent()       {}
func (TurnCompleted) isConnectorEvent()     {}
func (TurnAborted) isConnectorEvent()       {}
func (MessageCreated) isConnectorEvent()    {}
func (MessageUpdated) isConnectorEvent()    {}
func (ApprovalRequested) isConnectorEvent() {}
func (TokensUpdated) isConnectorEvent()     {}
func (DiffUpdated) isConnectorEvent()       {}
func (PlanUpdated) isConnectorEvent()       {}
func (SessionEnded) isConnectorEvent()      {}
func (Error) isConnectorEvent()             {}
