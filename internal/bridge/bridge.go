package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/robdel12/orbitdock/internal/logging"
	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/sessionactor"
	"github.com/robdel12/orbitdock/internal/transition"
)

// actionQueueCapacity bounds a Bridge's outbound action channel.
const actionQueueCapacity = 64

// Bridge owns one session's connector event stream and action sink,
// implementing the two-way select loop of spec.md §4.6: connector events
// become ProcessEvent commands on the addressed actor; actor-issued (or
// transport-issued) actions are dispatched to the connector's API.
type Bridge struct {
	sessionID string
	handle    *sessionactor.Handle
	connector Connector
	actions   chan Action
	clock     func() time.Time
	log       zerolog.Logger
}

// New constructs a Bridge for one session. handle is the actor the
// bridge forwards translated events to; connector is the provider
// adapter actions are dispatched against.
func New(sessionID string, handle *sessionactor.Handle, connector Connector) *Bridge {
	return &Bridge{
		sessionID: sessionID,
		handle:    handle,
		connector: connector,
		actions:   make(chan Action, actionQueueCapacity),
		clock:     time.Now,
		log:       logging.ForSession("bridge", sessionID),
	}
}

// Send enqueues an action, blocking until there is room or ctx is done.
func (b *Bridge) Send(ctx context.Context, action Action) error {
	select {
	case b.actions <- action:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains both the connector's event stream and this Bridge's action
// queue until events closes (connector stream closure, reported upstream
// as SessionEndedByConnector) or ctx is cancelled. One Run call handles
// exactly one connection; reconnection is RunWithReconnect's job.
func (b *Bridge) Run(ctx context.Context, events <-chan ConnectorEvent) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				b.forward(ctx, transition.SessionEndedByConnector{Reason: "stream closed"})
				return
			}
			b.forward(ctx, ToInput(event, b.sessionID, b.clock()))

		case action, ok := <-b.actions:
			if !ok {
				continue
			}
			b.dispatch(ctx, action)
		}
	}
}

func (b *Bridge) forward(ctx context.Context, input transition.Input) {
	if err := b.handle.Send(ctx, sessionactor.ProcessEvent{Input: input}); err != nil {
		b.log.Warn().Err(err).Msg("forward dropped")
	}
}

func (b *Bridge) dispatch(ctx context.Context, action Action) {
	switch a := action.(type) {
	case SendMessage:
		b.reportErr(ctx, b.connector.SendMessage(ctx, a))
	case SteerTurn:
		b.steerTurn(ctx, a)
	case Interrupt:
		b.reportErr(ctx, b.connector.Interrupt(ctx))
	case ApproveExec:
		b.reportErr(ctx, b.connector.ApproveExec(ctx, a.RequestID, a.Decision, a.ProposedAmendment))
	case ApprovePatch:
		b.reportErr(ctx, b.connector.ApprovePatch(ctx, a.RequestID, a.Decision))
	case AnswerQuestion:
		b.reportErr(ctx, b.connector.AnswerQuestion(ctx, a.RequestID, a.Answers))
	case UpdateConfig:
		b.reportErr(ctx, b.connector.UpdateConfig(ctx, a.ApprovalPolicy, a.SandboxMode))
	case SetThreadName:
		b.reportErr(ctx, b.connector.SetThreadName(ctx, a.Name))
	case Compact:
		b.reportErr(ctx, b.connector.Compact(ctx))
	case Undo:
		b.reportErr(ctx, b.connector.Undo(ctx))
	case ThreadRollback:
		b.reportErr(ctx, b.connector.ThreadRollback(ctx, a.NumTurns))
	case EndSession:
		b.reportErr(ctx, b.connector.EndSession(ctx))
	case ForkSession:
		id, err := b.connector.ForkSession(ctx)
		a.Reply <- ForkResult{SessionID: id, Err: err}
	default:
		b.log.Warn().Msgf("unhandled action %T", action)
	}
}

// steerTurn implements the inject-then-fallback semantics of spec.md §4.6:
// attempt in-flight injection, and whatever the outcome, persist and
// broadcast a terminal delivery status on the placeholder message by
// routing a MessageUpdated input through the normal actor/transition
// path — the same effect original_source's codex_session.rs gets by
// reaching into persist_tx and session.broadcast directly, but without
// bypassing the actor's single point of serialization.
func (b *Bridge) steerTurn(ctx context.Context, a SteerTurn) {
	outcome, err := b.connector.SteerTurn(ctx, a.Content)
	status := "failed"
	switch {
	case err != nil:
		b.log.Warn().Err(err).Msg("steer turn failed")
	case outcome == SteerAccepted:
		status = "delivered"
	case outcome == SteerFellBackToNewTurn:
		status = "fallback"
	}

	inner := status
	pinner := &inner
	if sendErr := b.handle.Send(ctx, sessionactor.Mutate{Input: transition.MessageUpdated{
		MessageID: a.MessageID,
		Changes:   protocol.MessageChanges{ToolOutput: &pinner},
	}}); sendErr != nil {
		b.log.Warn().Err(sendErr).Msg("steer status update dropped")
	}
}

func (b *Bridge) reportErr(ctx context.Context, err error) {
	if err == nil {
		return
	}
	b.log.Warn().Err(err).Msg("connector action failed")
	b.forward(ctx, transition.ConnectorErrored{Message: err.Error()})
}
