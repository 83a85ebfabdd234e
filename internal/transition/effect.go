package transition

import "github.com/robdel12/orbitdock/internal/protocol"

// Effect is the closed sum type of side effects Apply asks its caller to
// carry out. Apply never performs these itself; the session actor drains
// the returned slice after folding state.
type Effect interface {
	isEffect()
}

// Persist asks the persistence writer to record a mutation.
type Persist struct {
	Op PersistOp
}

// PersistOp enumerates the idempotent operations the persistence writer
// understands, mirroring the state mutations that warrant durability.
type PersistOp struct {
	SessionUpdate    *protocol.SessionState
	MessageAppend    *protocol.Message
	MessageUpdate    *PersistMessageUpdate
	ApprovalCreate   *protocol.ApprovalRequest
	ApprovalResolved *protocol.ApprovalHistoryItem
	SetCustomName    *PersistCustomName
	SetSummary       *PersistSummary
}

// PersistSummary is the persisted form of a first-user-message summary
// candidate, seeded by MessageCreated and later overridable by a human
// SetCustomName.
type PersistSummary struct {
	SessionID string
	Summary   string
}

// PersistMessageUpdate is the persisted form of a MessageUpdated input.
type PersistMessageUpdate struct {
	SessionID string
	MessageID string
	Changes   protocol.MessageChanges
}

// PersistCustomName is the persisted form of a CustomNameSet input.
type PersistCustomName struct {
	SessionID string
	Name      string
}

// Broadcast asks the subscription layer to fan out an event to subscribers
// and append it to the session's replay ring at the given revision.
type Broadcast struct {
	Revision uint64
	Event    protocol.Event
}

// NotifyRegistry asks the session registry to update its cached summary,
// e.g. after a status or name change that list subscribers care about.
type NotifyRegistry struct {
	Summary protocol.SessionSummary
}

// RequestNaming asks the background AI-naming job to propose a name for
// sessions that do not yet have a custom one.
type RequestNaming struct {
	SessionID string
}

func (Persist) isEffect()        {}
func (Broadcast) isEffect()      {}
func (NotifyRegistry) isEffect() {}
func (RequestNaming) isEffect()  {}
