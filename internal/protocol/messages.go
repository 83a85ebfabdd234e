package protocol

// ServerMessage is the sum type OrbitDock pushes down a client connection.
// Only one field handler should type-switch on Kind; Payload is one of the
// concrete types below.
type ServerMessage struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

const (
	ServerKindSnapshot     ServerMessage_Kind = "snapshot"
	ServerKindEvent        ServerMessage_Kind = "event"
	ServerKindError        ServerMessage_Kind = "error"
	ServerKindListSnapshot ServerMessage_Kind = "session_list_snapshot"
	ServerKindListChanged  ServerMessage_Kind = "session_list_changed"
)

// ServerMessage_Kind enumerates ServerMessage.Kind values.
type ServerMessage_Kind = string

// SnapshotPayload carries a full session state, sent on subscribe or resync.
type SnapshotPayload struct {
	State SessionState `json:"state"`
}

// EventPayload carries one incremental, replayable session event.
type EventPayload struct {
	Revision uint64 `json:"revision"`
	Event    Event  `json:"event"`
}

// ErrorPayload reports a client-facing error on a connection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListSnapshotPayload carries every known session's summary, sent once when
// a client joins the list-level feed.
type ListSnapshotPayload struct {
	Sessions []SessionSummary `json:"sessions"`
}

// ListChangedPayload reports one list-relevant change: a session created,
// removed, or one of its summary-relevant fields (status, work_status,
// custom_name, last_activity_at, pending-approval presence) changing.
type ListChangedPayload struct {
	Action  string         `json:"action"`
	Summary SessionSummary `json:"summary"`
}

// Event is a closed sum type of state changes a subscriber can replay.
// Exactly one of the embedded fields is non-nil.
type Event struct {
	MessageAppended   *Message           `json:"message_appended,omitempty"`
	MessageUpdated    *MessageUpdate     `json:"message_updated,omitempty"`
	StateChanged      *StateChange       `json:"state_changed,omitempty"`
	ApprovalRequested *ApprovalRequest   `json:"approval_requested,omitempty"`
	ApprovalResolved  *ApprovalResolved  `json:"approval_resolved,omitempty"`
	TokensUpdated     *TokenUsage        `json:"tokens_updated,omitempty"`
	SessionEnded      *SessionEndedEvent `json:"session_ended,omitempty"`
}

// MessageUpdate names the message being patched plus its delta.
type MessageUpdate struct {
	MessageID string         `json:"message_id"`
	Changes   MessageChanges `json:"changes"`
}

// StateChange carries the resulting summary after a StateChanges delta
// was folded in, cheaper for subscribers than re-deriving from the delta.
// Diff and Plan are only set when that specific field is what changed —
// SessionSummary omits both (they belong to the full session, not its
// lightweight list projection), so without them a DiffUpdated/PlanUpdated
// subscriber would see only "something changed" with no way to learn what.
type StateChange struct {
	Summary SessionSummary `json:"summary"`
	Diff    *string        `json:"diff,omitempty"`
	Plan    *string        `json:"plan,omitempty"`
}

// ApprovalResolved reports the outcome of a previously requested approval.
type ApprovalResolved struct {
	RequestID string           `json:"request_id"`
	Decision  ApprovalDecision `json:"decision"`
}

// SessionEndedEvent reports session termination.
type SessionEndedEvent struct {
	Reason string `json:"reason"`
}

// ClientCommand is the sum type clients send inbound over a connection.
type ClientCommand struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

const (
	ClientKindSubscribe     = "subscribe"
	ClientKindSendMessage   = "send_message"
	ClientKindDecide        = "decide_approval"
	ClientKindSteer         = "steer_turn"
	ClientKindSetName       = "set_custom_name"
	ClientKindEnd           = "end_session"
	ClientKindInterrupt     = "interrupt_session"
	ClientKindCompact       = "compact_context"
	ClientKindUndo          = "undo_last_turn"
	ClientKindRollback      = "rollback_turns"
	ClientKindSubscribeList = "subscribe_list"
)

// SubscribeListPayload joins the process-wide session list feed. It carries
// no fields; the server always replies with a full ListSnapshotPayload
// followed by a live ListChangedPayload stream.
type SubscribeListPayload struct{}

// SubscribePayload asks to join a session's event stream, optionally
// replaying from a given revision instead of starting from a fresh snapshot.
type SubscribePayload struct {
	SessionID     string  `json:"session_id"`
	SinceRevision *uint64 `json:"since_revision,omitempty"`
}

// SendMessagePayload injects a new user message into a running session.
type SendMessagePayload struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// DecideApprovalPayload answers a pending ApprovalRequest.
type DecideApprovalPayload struct {
	SessionID string           `json:"session_id"`
	RequestID string           `json:"request_id"`
	Decision  ApprovalDecision `json:"decision"`
}

// SteerTurnPayload interrupts an in-flight turn with new guidance.
type SteerTurnPayload struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// SetCustomNamePayload renames a session.
type SetCustomNamePayload struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// EndSessionPayload requests a session be ended.
type EndSessionPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// InterruptPayload asks the connector to abort its current turn.
type InterruptPayload struct {
	SessionID string `json:"session_id"`
}

// CompactPayload asks the connector to compact its context.
type CompactPayload struct {
	SessionID string `json:"session_id"`
}

// UndoPayload asks the connector to undo its last turn.
type UndoPayload struct {
	SessionID string `json:"session_id"`
}

// RollbackPayload asks the connector to roll back a number of turns.
type RollbackPayload struct {
	SessionID string `json:"session_id"`
	NumTurns  int    `json:"num_turns"`
}
