// Package sessionactor runs one goroutine per session, serializing all
// mutations to that session's state through a single command channel and
// publishing a lock-free snapshot after every fold. It is the Go analogue
// of a single-threaded actor: nothing outside the actor goroutine ever
// mutates SessionState directly.
package sessionactor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robdel12/orbitdock/internal/logging"
	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/subscription"
	"github.com/robdel12/orbitdock/internal/transition"
)

// commandQueueCapacity bounds the per-session command channel. A session
// stuck behind a slow persistence write backpressures its own callers
// rather than growing without bound.
const commandQueueCapacity = 256

// Handle is the externally held reference to a running session actor. It
// is cheap to copy and safe for concurrent use.
type Handle struct {
	ID        string
	commands  chan Command
	snapshot  *atomic.Pointer[protocol.SessionState]
	done      chan struct{}
}

// Dependencies are the effect sinks the actor drains into after each fold.
// Each is optional in tests; a nil sink silently drops that effect kind.
type Dependencies struct {
	Persist       func(transition.PersistOp)
	Notify        func(protocol.SessionSummary)
	Broadcast     func(sessionID string, revision uint64, event protocol.Event)
	RequestNaming func(sessionID string)
	Subscribe     func(sessionID string, sinceRevision *uint64, fn subscription.Subscriber) subscription.SubscribeResult
	Clock         transition.Clock
}

// Spawn starts a new session actor goroutine seeded with the given initial
// state and returns a Handle to it. The goroutine exits when ctx is
// cancelled or a TakeHandle command hands ownership elsewhere.
func Spawn(ctx context.Context, initial protocol.SessionState, deps Dependencies) *Handle {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	snap := &atomic.Pointer[protocol.SessionState]{}
	snap.Store(&initial)

	h := &Handle{
		ID:       initial.ID,
		commands: make(chan Command, commandQueueCapacity),
		snapshot: snap,
		done:     make(chan struct{}),
	}

	go runLoop(ctx, h, initial, deps)
	return h
}

// Snapshot returns the most recently published state without touching the
// actor's command channel: readers never block a session's writer.
func (h *Handle) Snapshot() protocol.SessionState {
	return *h.snapshot.Load()
}

// Send enqueues a command, blocking until there is room or ctx is done.
func (h *Handle) Send(ctx context.Context, cmd Command) error {
	select {
	case h.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrActorStopped
	}
}

// TrySend enqueues a command without blocking, reporting whether it fit.
func (h *Handle) TrySend(cmd Command) bool {
	select {
	case <-h.done:
		logging.ForSession("sessionactor", h.ID).Warn().Msg("command dropped, actor stopped")
		return false
	default:
	}
	select {
	case h.commands <- cmd:
		return true
	default:
		logging.ForSession("sessionactor", h.ID).Warn().Msg("command dropped, queue full")
		return false
	}
}

func runLoop(ctx context.Context, h *Handle, state protocol.SessionState, deps Dependencies) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			if take, isTake := cmd.(takeHandle); isTake {
				take.reply <- state
				close(take.reply)
				return
			}
			var effects []transition.Effect
			state, effects = apply(state, cmd, deps)
			h.snapshot.Store(&state)
			drain(h.ID, state.ID, effects, deps)
		}
	}
}

func drain(actorID, sessionID string, effects []transition.Effect, deps Dependencies) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case transition.Persist:
			if deps.Persist != nil {
				deps.Persist(e.Op)
			}
		case transition.Broadcast:
			if deps.Broadcast != nil {
				deps.Broadcast(sessionID, e.Revision, e.Event)
			}
		case transition.NotifyRegistry:
			if deps.Notify != nil {
				deps.Notify(e.Summary)
			}
		case transition.RequestNaming:
			if deps.RequestNaming != nil {
				deps.RequestNaming(e.SessionID)
			}
		default:
			logging.ForSession("sessionactor", actorID).Warn().Msgf("unhandled effect %T", eff)
		}
	}
}
