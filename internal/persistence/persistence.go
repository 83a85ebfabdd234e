// Package persistence is OrbitDock's persistence writer: a single
// goroutine consuming a bounded channel of Commands and applying them, in
// order, to internal/storage. Having exactly one writer removes the need
// for per-row locking and gives durable writes a natural total order,
// grounded on the original implementation's single persistence task.
package persistence

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/storage"
	"github.com/robdel12/orbitdock/internal/transition"
)

// defaultQueueCapacity is the writer's channel buffer, matching the
// default spec.md §4.4 calls out explicitly.
const defaultQueueCapacity = 512

// Command is the closed sum type the writer's channel carries.
type Command interface {
	isCommand()
}

// SessionCreate inserts a brand-new session row. It is not derived from a
// PersistOp since no prior state exists to fold. httpapi's createSession
// and forkSession handlers do not submit it; they write the initial row
// with storage.Store.CreateSession directly.
type SessionCreate struct {
	State protocol.SessionState
}

// SessionUpdate overwrites an existing session row.
type SessionUpdate struct {
	State protocol.SessionState
}

// SetCustomName overwrites a session's custom name.
type SetCustomName struct {
	SessionID string
	Name      string
}

// SetSummary overwrites a session's summary candidate.
type SetSummary struct {
	SessionID string
	Summary   string
}

// MessageCreate appends a message row.
type MessageCreate struct {
	Message protocol.Message
}

// MessageUpdate patches an existing message row.
type MessageUpdate struct {
	SessionID string
	MessageID string
	Changes   protocol.MessageChanges
}

// ApprovalCreate records a newly pending approval on its session.
type ApprovalCreate struct {
	Request protocol.ApprovalRequest
}

// ApprovalDecide writes a resolved approval to the audit log.
type ApprovalDecide struct {
	Item protocol.ApprovalHistoryItem
}

func (SessionCreate) isCommand()  {}
func (SessionUpdate) isCommand()  {}
func (SetCustomName) isCommand()  {}
func (SetSummary) isCommand()     {}
func (MessageCreate) isCommand()  {}
func (MessageUpdate) isCommand()  {}
func (ApprovalCreate) isCommand() {}
func (ApprovalDecide) isCommand() {}

// Writer owns the durable store and the single channel every command
// flows through.
type Writer struct {
	store    *storage.Store
	commands chan Command
	failures atomic.Uint64
}

// NewWriter constructs a Writer over store with the default queue
// capacity.
func NewWriter(store *storage.Store) *Writer {
	return &Writer{store: store, commands: make(chan Command, defaultQueueCapacity)}
}

// Failures returns the number of commands that have failed to apply since
// start, exposed for health/metrics surfaces.
func (w *Writer) Failures() uint64 {
	return w.failures.Load()
}

// Submit blocks until cmd is enqueued or ctx is done, giving the writer's
// channel natural backpressure onto callers per spec.md §4.4 ("a full
// channel blocks the actor until the writer drains").
func (w *Writer) Submit(ctx context.Context, cmd Command) error {
	select {
	case w.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsPersistDependency adapts the writer into the sessionactor.Dependencies
// Persist callback shape, translating a transition.PersistOp into the
// matching Command and blocking until it is enqueued. A PersistOp with no
// field set is dropped without logging.
func (w *Writer) AsPersistDependency(ctx context.Context) func(transition.PersistOp) {
	return func(op transition.PersistOp) {
		cmd, ok := fromPersistOp(op)
		if !ok {
			return
		}
		if err := w.Submit(ctx, cmd); err != nil {
			log.Warn().Err(err).Msg("persistence: submit dropped, context done")
		}
	}
}

func fromPersistOp(op transition.PersistOp) (Command, bool) {
	switch {
	case op.SessionUpdate != nil:
		return SessionUpdate{State: *op.SessionUpdate}, true
	case op.MessageAppend != nil:
		return MessageCreate{Message: *op.MessageAppend}, true
	case op.MessageUpdate != nil:
		return MessageUpdate{
			SessionID: op.MessageUpdate.SessionID,
			MessageID: op.MessageUpdate.MessageID,
			Changes:   op.MessageUpdate.Changes,
		}, true
	case op.ApprovalCreate != nil:
		return ApprovalCreate{Request: *op.ApprovalCreate}, true
	case op.ApprovalResolved != nil:
		return ApprovalDecide{Item: *op.ApprovalResolved}, true
	case op.SetCustomName != nil:
		return SetCustomName{SessionID: op.SetCustomName.SessionID, Name: op.SetCustomName.Name}, true
	case op.SetSummary != nil:
		return SetSummary{SessionID: op.SetSummary.SessionID, Summary: op.SetSummary.Summary}, true
	default:
		return nil, false
	}
}

// Run drains the command channel until ctx is cancelled, applying each
// command to the store in arrival order. Write failures are logged and
// counted, never propagated: the writer is a sink, matching spec.md §4.4's
// "on write failure, the writer logs the error, increments a failure
// counter, and continues".
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-w.commands:
			if !ok {
				return
			}
			w.apply(ctx, cmd)
		}
	}
}

func (w *Writer) apply(ctx context.Context, cmd Command) {
	var err error
	switch c := cmd.(type) {
	case SessionCreate:
		err = w.store.CreateSession(ctx, c.State)
	case SessionUpdate:
		err = w.store.UpdateSession(ctx, c.State)
	case SetCustomName:
		err = w.store.SetCustomName(ctx, c.SessionID, c.Name)
	case SetSummary:
		err = w.store.SetSummary(ctx, c.SessionID, c.Summary)
	case MessageCreate:
		err = w.store.AppendMessage(ctx, c.Message)
	case MessageUpdate:
		err = w.store.UpdateMessage(ctx, c.SessionID, c.MessageID, c.Changes)
	case ApprovalCreate:
		err = w.store.CreateApproval(ctx, c.Request)
	case ApprovalDecide:
		err = w.store.ResolveApproval(ctx, c.Item)
	default:
		log.Warn().Msgf("persistence: unhandled command %T", cmd)
		return
	}

	if err != nil {
		w.failures.Add(1)
		log.Error().Err(err).Msgf("persistence: apply %T failed", cmd)
	}
}
