package sessionactor

import (
	"errors"

	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/subscription"
	"github.com/robdel12/orbitdock/internal/transition"
)

// ErrActorStopped is returned by Send when the actor has already exited.
var ErrActorStopped = errors.New("sessionactor: actor stopped")

// Command is the closed sum type the actor's command channel carries.
// It covers the four groups from the design: queries, simple mutations,
// compound operations and connector-bridge events.
type Command interface {
	isCommand()
}

// --- Queries (reply over an embedded channel) ---

// GetSnapshot asks for the current state, replied over Reply. Callers that
// only need the latest snapshot should prefer Handle.Snapshot instead;
// this exists for call sites that want it interleaved with other commands.
type GetSnapshot struct {
	Reply chan<- protocol.SessionState
}

// Subscribe registers fn for this session's future events and, in the same
// command execution, captures whatever payload the caller needs to join
// without missing or duplicating events: per spec.md §4.5 the snapshot (or
// replay backlog) and the live registration must be assembled atomically,
// which routing this through the actor's single serialization point
// guarantees — no Broadcast effect from a later command can land between
// "read state" and "register subscriber" because both happen inside one
// command's processing here.
type Subscribe struct {
	SinceRevision *uint64
	Fn            subscription.Subscriber
	Reply         chan<- SubscribeReply
}

// SubscribeReply is what a Subscribe command answers with: the state as of
// this command's execution, plus the Hub's verdict on whether the caller
// can replay from the ring or must fall back to sending that state as a
// full snapshot.
type SubscribeReply struct {
	State  protocol.SessionState
	Result subscription.SubscribeResult
}

// takeHandle is unexported: only runLoop understands it, and Spawn never
// exposes a way to construct one directly. External code asks for
// ownership transfer through Handle.TakeHandle instead.
type takeHandle struct {
	reply chan protocol.SessionState
}

// --- Simple mutations: one Input, folded directly ---

// Mutate wraps any transition.Input for direct application. Most simple
// mutations (TokensUpdated, DiffUpdated, PlanUpdated, CustomNameSet) are
// sent this way.
type Mutate struct {
	Input transition.Input
}

// --- Compound operations ---

// ApplyDelta folds a batch of Inputs as one command, used when a connector
// reports several changes from a single upstream event (e.g. a message
// plus a token update). The snapshot is published once, after the whole
// batch; each Input still advances the revision and emits its own effects.
type ApplyDelta struct {
	Inputs []transition.Input
}

// EndLocally ends the session from a local (non-connector) source, e.g. an
// HTTP DELETE, recording a distinct reason so audit history can tell local
// termination apart from the connector ending its own turn.
type EndLocally struct {
	Reason string
}

// SetCustomNameAndNotify renames the session. It folds
// transition.CustomNameSet, whose NotifyRegistry effect reaches list
// subscribers before the actor takes its next command. It carries no
// reply; the HTTP rename handler follows it with a GetSnapshot and waits
// for that reply, so it responds only once the rename is applied.
type SetCustomNameAndNotify struct {
	Name string
}

// --- Connector-bridge commands ---

// ProcessEvent folds a connector event, pre-translated to an Input by the
// bridge, into session state.
type ProcessEvent struct {
	Input transition.Input
}

func (GetSnapshot) isCommand()            {}
func (Subscribe) isCommand()              {}
func (takeHandle) isCommand()             {}
func (Mutate) isCommand()                 {}
func (ApplyDelta) isCommand()             {}
func (EndLocally) isCommand()             {}
func (SetCustomNameAndNotify) isCommand() {}
func (ProcessEvent) isCommand()           {}
