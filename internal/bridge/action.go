package bridge

import (
	"context"

	"github.com/robdel12/orbitdock/internal/protocol"
)

// Action is the closed sum type of connector-bound directives an actor or
// transport handler can enqueue on a Bridge, restating original_source
// codex_session::CodexAction as a Go interface sum.
type Action interface {
	isAction()
}

// SendMessage starts a new turn with human-authored content.
type SendMessage struct {
	Content  string
	Model    string
	Effort   string
	Skills   []string
	Images   []string
	Mentions []string
}

// SteerTurn injects content into an in-flight turn, falling back to a new
// turn if the connector cannot accept injection. MessageID names the
// placeholder message whose delivery status gets updated once the
// connector responds.
type SteerTurn struct {
	Content   string
	MessageID string
}

// Interrupt asks the connector to abort its current turn.
type Interrupt struct{}

// ApproveExec resolves a pending exec approval.
type ApproveExec struct {
	RequestID         string
	Decision          protocol.ApprovalDecision
	ProposedAmendment []string
}

// ApprovePatch resolves a pending patch approval.
type ApprovePatch struct {
	RequestID string
	Decision  protocol.ApprovalDecision
}

// AnswerQuestion resolves a pending question approval.
type AnswerQuestion struct {
	RequestID string
	Answers   []string
}

// UpdateConfig changes the connector's approval policy and/or sandbox
// mode. A nil field leaves that setting unchanged.
type UpdateConfig struct {
	ApprovalPolicy *string
	SandboxMode    *string
}

// SetThreadName asks the connector to rename its underlying thread.
type SetThreadName struct {
	Name string
}

// Compact asks the connector to compact its context.
type Compact struct{}

// Undo asks the connector to undo its last turn.
type Undo struct{}

// ThreadRollback asks the connector to roll back a number of turns.
type ThreadRollback struct {
	NumTurns int
}

// EndSession asks the connector to end the session on its side.
type EndSession struct{}

// ForkSession asks the connector to fork the session, replying with the
// new session id (or an error) on Reply.
type ForkSession struct {
	Reply chan<- ForkResult
}

// ForkResult is what a ForkSession action replies with.
type ForkResult struct {
	SessionID string
	Err       error
}

func (SendMessage) isAction()    {}
func (SteerTurn) isAction()      {}
func (Interrupt) isAction()      {}
func (ApproveExec) isAction()    {}
func (ApprovePatch) isAction()   {}
func (AnswerQuestion) isAction() {}
func (UpdateConfig) isAction()   {}
func (SetThreadName) isAction()  {}
func (Compact) isAction()        {}
func (Undo) isAction()           {}
func (ThreadRollback) isAction() {}
func (EndSession) isAction()     {}
func (ForkSession) isAction()    {}

// SteerOutcome is how a connector responded to a SteerTurn attempt.
type SteerOutcome int

const (
	SteerAccepted SteerOutcome = iota
	SteerFellBackToNewTurn
)

// Connector is the interface the bridge drives actions against and reads
// events from. Its concrete implementations (Claude hook ingestion, an
// in-process Codex process) are provider adapters out of core per the
// spec; only this vocabulary is.
type Connector interface {
	SendMessage(ctx context.Context, action SendMessage) error
	SteerTurn(ctx context.Context, content string) (SteerOutcome, error)
	Interrupt(ctx context.Context) error
	ApproveExec(ctx context.Context, requestID string, decision protocol.ApprovalDecision, proposedAmendment []string) error
	ApprovePatch(ctx context.Context, requestID string, decision protocol.ApprovalDecision) error
	AnswerQuestion(ctx context.Context, requestID string, answers []string) error
	UpdateConfig(ctx context.Context, approvalPolicy, sandboxMode *string) error
	SetThreadName(ctx context.Context, name string) error
	Compact(ctx context.Context) error
	Undo(ctx context.Context) error
	ThreadRollback(ctx context.Context, numTurns int) error
	EndSession(ctx context.Context) error
	ForkSession(ctx context.Context) (string, error)
}
