// Package protocol defines OrbitDock's wire and domain types: the
// session/message/approval data model shared by the transition function,
// session actor, persistence writer and HTTP/WebSocket transport.
package protocol

import (
	"encoding/json"
	"time"
)

// Provider identifies which coding-agent backend a session is driving.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderCodex  Provider = "codex"
)

// CodexIntegrationMode distinguishes a session OrbitDock drives directly
// from one it is only observing (e.g. attached to a terminal-run agent).
type CodexIntegrationMode string

const (
	CodexModeDirect  CodexIntegrationMode = "direct"
	CodexModePassive CodexIntegrationMode = "passive"
)

// SessionStatus is the coarse lifecycle state of a session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// WorkStatus is the fine-grained activity state surfaced to clients.
type WorkStatus string

const (
	WorkWorking    WorkStatus = "working"
	WorkWaiting    WorkStatus = "waiting"
	WorkPermission WorkStatus = "permission"
	WorkQuestion   WorkStatus = "question"
	WorkReply      WorkStatus = "reply"
	WorkEnded      WorkStatus = "ended"
)

// MessageRole is who produced a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType distinguishes the kind of content a message carries.
type MessageType string

const (
	MessageUser       MessageType = "user"
	MessageAssistant  MessageType = "assistant"
	MessageThinking   MessageType = "thinking"
	MessageTool       MessageType = "tool"
	MessageToolResult MessageType = "tool_result"
)

// Message is one entry in a session's transcript.
type Message struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"session_id"`
	Type       MessageType `json:"type"`
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolName   string      `json:"tool_name,omitempty"`
	ToolInput  string      `json:"tool_input,omitempty"`
	ToolOutput string      `json:"tool_output,omitempty"`
	IsError    bool        `json:"is_error,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	DurationMS *int64      `json:"duration_ms,omitempty"`
}

// TokenUsage tracks cumulative token accounting for a session.
type TokenUsage struct {
	InputTokens   int64 `json:"input_tokens"`
	OutputTokens  int64 `json:"output_tokens"`
	CachedTokens  int64 `json:"cached_tokens"`
	ContextWindow int64 `json:"context_window"`
}

// ContextFillPercent returns how full the context window is, 0 if unknown.
func (t TokenUsage) ContextFillPercent() float64 {
	if t.ContextWindow <= 0 {
		return 0
	}
	used := t.InputTokens + t.OutputTokens
	pct := float64(used) / float64(t.ContextWindow) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// CacheHitPercent returns what fraction of input tokens were served from cache.
func (t TokenUsage) CacheHitPercent() float64 {
	if t.InputTokens <= 0 {
		return 0
	}
	pct := float64(t.CachedTokens) / float64(t.InputTokens) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ApprovalType is the kind of action awaiting human sign-off.
type ApprovalType string

const (
	ApprovalExec     ApprovalType = "exec"
	ApprovalPatch    ApprovalType = "patch"
	ApprovalQuestion ApprovalType = "question"
)

// ApprovalRequest is an in-flight ask for human approval.
type ApprovalRequest struct {
	ID                string       `json:"id"`
	SessionID         string       `json:"session_id"`
	Type              ApprovalType `json:"type"`
	ToolName          string       `json:"tool_name,omitempty"`
	Command           string       `json:"command,omitempty"`
	FilePath          string       `json:"file_path,omitempty"`
	Diff              string       `json:"diff,omitempty"`
	Question          string       `json:"question,omitempty"`
	ProposedAmendment []string     `json:"proposed_amendment,omitempty"`
	RequestedAt       time.Time    `json:"requested_at"`
}

// ApprovalDecision is the human's answer to an ApprovalRequest.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionDeny    ApprovalDecision = "deny"
)

// ApprovalHistoryItem is the persisted audit record of a resolved approval.
type ApprovalHistoryItem struct {
	ID                string           `json:"id"`
	SessionID         string           `json:"session_id"`
	RequestID         string           `json:"request_id"`
	Type              ApprovalType     `json:"type"`
	ToolName          string           `json:"tool_name,omitempty"`
	Command           string           `json:"command,omitempty"`
	FilePath          string           `json:"file_path,omitempty"`
	Cwd               string           `json:"cwd,omitempty"`
	ProposedAmendment []string         `json:"proposed_amendment,omitempty"`
	Decision          ApprovalDecision `json:"decision"`
	CreatedAt         time.Time        `json:"created_at"`
	DecidedAt         time.Time        `json:"decided_at"`
}

// SessionSummary is the lightweight projection used for session listings.
type SessionSummary struct {
	ID                string               `json:"id"`
	Provider          Provider             `json:"provider"`
	ProjectPath       string               `json:"project_path"`
	ProjectName       string               `json:"project_name,omitempty"`
	TranscriptPath    string               `json:"transcript_path,omitempty"`
	Model             string               `json:"model,omitempty"`
	CustomName        string               `json:"custom_name,omitempty"`
	Status            SessionStatus        `json:"status"`
	WorkStatus        WorkStatus           `json:"work_status"`
	Branch            string               `json:"branch,omitempty"`
	HasPendingApproval bool                `json:"has_pending_approval"`
	CodexMode         CodexIntegrationMode `json:"codex_integration_mode,omitempty"`
	ApprovalPolicy    string               `json:"approval_policy,omitempty"`
	SandboxMode       string               `json:"sandbox_mode,omitempty"`
	Revision          uint64               `json:"revision"`
	StartedAt         time.Time            `json:"started_at"`
	LastActivityAt    time.Time            `json:"last_activity_at"`
}

// SessionState is the full authoritative state of one session, the value
// the transition function folds Inputs into and the actor snapshots.
type SessionState struct {
	ID                 string               `json:"id"`
	Provider           Provider             `json:"provider"`
	ProjectPath        string               `json:"project_path"`
	ProjectName        string               `json:"project_name,omitempty"`
	TranscriptPath     string               `json:"transcript_path,omitempty"`
	Model              string               `json:"model,omitempty"`
	CodexMode          CodexIntegrationMode `json:"codex_integration_mode,omitempty"`
	CustomName         string               `json:"custom_name,omitempty"`
	Status             SessionStatus        `json:"status"`
	WorkStatus         WorkStatus           `json:"work_status"`
	Branch             string               `json:"branch,omitempty"`
	Messages           []Message            `json:"messages"`
	PendingApproval    *ApprovalRequest     `json:"pending_approval,omitempty"`
	Tokens             TokenUsage           `json:"tokens"`
	Diff               string               `json:"diff,omitempty"`
	Plan               string               `json:"plan,omitempty"`
	ApprovalPolicy     string               `json:"approval_policy,omitempty"`
	SandboxMode        string               `json:"sandbox_mode,omitempty"`
	EndedReason        string               `json:"ended_reason,omitempty"`
	ForkedFromSessionID string              `json:"forked_from_session_id,omitempty"`
	SummaryCandidate   string               `json:"summary_candidate,omitempty"`
	LastTool           string               `json:"last_tool,omitempty"`
	Revision           uint64               `json:"revision"`
	StartedAt          time.Time            `json:"started_at"`
	LastActivityAt     time.Time            `json:"last_activity_at"`
}

// Summary projects full state down to a SessionSummary.
func (s SessionState) Summary() SessionSummary {
	return SessionSummary{
		ID:                 s.ID,
		Provider:           s.Provider,
		ProjectPath:        s.ProjectPath,
		ProjectName:        s.ProjectName,
		TranscriptPath:     s.TranscriptPath,
		Model:              s.Model,
		CustomName:         s.CustomName,
		Status:             s.Status,
		WorkStatus:         s.WorkStatus,
		Branch:             s.Branch,
		HasPendingApproval: s.PendingApproval != nil,
		CodexMode:          s.CodexMode,
		ApprovalPolicy:     s.ApprovalPolicy,
		SandboxMode:        s.SandboxMode,
		Revision:           s.Revision,
		StartedAt:          s.StartedAt,
		LastActivityAt:     s.LastActivityAt,
	}
}

// StateChanges is a sparse delta over SessionState. Nested pointer-to-pointer
// fields distinguish "absent" from "present but explicitly cleared to empty":
// a nil *StateChanges field means no change, a non-nil field pointing at a
// nil inner value means "clear this field".
type StateChanges struct {
	CustomName  **string     `json:"-"`
	WorkStatus  *WorkStatus  `json:"-"`
	Branch      **string     `json:"-"`
	Diff        **string     `json:"-"`
	Plan        **string     `json:"-"`
	EndedReason **string     `json:"-"`
}

// MessageChanges is a sparse delta over a Message, used by MessageUpdated.
// A nil field means no change; a non-nil field pointing at a nil inner
// value means "clear this field"; a non-nil field pointing at a non-nil
// inner value means "set to this value". MarshalJSON flattens that
// three-state contract onto the wire: a changed field is either present
// with its value or present as an explicit null, and an unchanged field
// is omitted entirely.
type MessageChanges struct {
	Content    **string `json:"-"`
	ToolOutput **string `json:"-"`
	IsError    *bool    `json:"-"`
	DurationMS **int64  `json:"-"`
}

// MarshalJSON encodes only the fields that actually changed.
func (c MessageChanges) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 4)
	if c.Content != nil {
		out["content"] = *c.Content
	}
	if c.ToolOutput != nil {
		out["tool_output"] = *c.ToolOutput
	}
	if c.IsError != nil {
		out["is_error"] = *c.IsError
	}
	if c.DurationMS != nil {
		out["duration_ms"] = *c.DurationMS
	}
	return json.Marshal(out)
}
