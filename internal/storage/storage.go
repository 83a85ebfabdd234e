// Package storage is OrbitDock's durable store: a database/sql handle over
// modernc.org/sqlite, schema-versioned by internal/migrate, exposing one
// method per persistence command the writer understands. Idempotency is
// pushed down to SQL (INSERT OR IGNORE / plain overwrite UPDATE) rather
// than tracked in Go, mirroring the original migration_runner's own
// "idempotent by construction" approach to schema application.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/robdel12/orbitdock/internal/migrate"
	"github.com/robdel12/orbitdock/internal/protocol"
)

// Store wraps the durable handle. All methods are safe for concurrent use
// only insofar as database/sql itself serializes access; OrbitDock never
// calls these concurrently in practice because the persistence writer is
// the sole caller.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// every pending migration before returning.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer by construction, matches spec's writer model

	if err := migrate.Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row, a no-op if the id already
// exists: repeated SessionCreate for the same id is idempotent.
func (s *Store) CreateSession(ctx context.Context, st protocol.SessionState) error {
	pending, err := marshalApproval(st.PendingApproval)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (
			id, provider, codex_mode, custom_name, summary_candidate, status, work_status,
			branch, project_path, project_name, transcript_path, model, approval_policy,
			sandbox_mode, forked_from_session_id, last_tool, diff, plan, ended_reason,
			pending_approval_json, input_tokens, output_tokens, cached_tokens, context_window,
			revision, started_at, last_activity_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		st.ID, st.Provider, st.CodexMode, st.CustomName, st.SummaryCandidate, st.Status, st.WorkStatus,
		st.Branch, st.ProjectPath, st.ProjectName, st.TranscriptPath, st.Model, st.ApprovalPolicy,
		st.SandboxMode, st.ForkedFromSessionID, st.LastTool, st.Diff, st.Plan, st.EndedReason,
		pending, st.Tokens.InputTokens, st.Tokens.OutputTokens, st.Tokens.CachedTokens, st.Tokens.ContextWindow,
		st.Revision, formatTime(st.StartedAt), formatTime(st.LastActivityAt),
	)
	if err != nil {
		return fmt.Errorf("storage: create session: %w", err)
	}
	return nil
}

// UpdateSession overwrites every column of an existing session row with
// the given state, matching the writer's "repeated SessionUpdate
// overwrites" idempotency contract.
func (s *Store) UpdateSession(ctx context.Context, st protocol.SessionState) error {
	pending, err := marshalApproval(st.PendingApproval)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE sessions SET
			codex_mode = ?, custom_name = ?, summary_candidate = ?, status = ?, work_status = ?,
			branch = ?, project_name = ?, transcript_path = ?, model = ?, approval_policy = ?,
			sandbox_mode = ?, forked_from_session_id = ?, last_tool = ?, diff = ?, plan = ?,
			ended_reason = ?, pending_approval_json = ?, input_tokens = ?, output_tokens = ?,
			cached_tokens = ?, context_window = ?, revision = ?, last_activity_at = ?
		WHERE id = ?`,
		st.CodexMode, st.CustomName, st.SummaryCandidate, st.Status, st.WorkStatus,
		st.Branch, st.ProjectName, st.TranscriptPath, st.Model, st.ApprovalPolicy,
		st.SandboxMode, st.ForkedFromSessionID, st.LastTool, st.Diff, st.Plan,
		st.EndedReason, pending, st.Tokens.InputTokens, st.Tokens.OutputTokens,
		st.Tokens.CachedTokens, st.Tokens.ContextWindow, st.Revision, formatTime(st.LastActivityAt),
		st.ID,
	)
	if err != nil {
		return fmt.Errorf("storage: update session: %w", err)
	}
	return nil
}

// SetCustomName overwrites a session's custom_name column.
func (s *Store) SetCustomName(ctx context.Context, sessionID, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET custom_name = ? WHERE id = ?`, name, sessionID)
	if err != nil {
		return fmt.Errorf("storage: set custom name: %w", err)
	}
	return nil
}

// SetSummary overwrites a session's summary_candidate column.
func (s *Store) SetSummary(ctx context.Context, sessionID, summary string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET summary_candidate = ? WHERE id = ?`, summary, sessionID)
	if err != nil {
		return fmt.Errorf("storage: set summary: %w", err)
	}
	return nil
}

// AppendMessage inserts a message row, a no-op if the id already exists:
// repeated MessageCreate for the same (session_id, message_id) is
// idempotent at the key level.
func (s *Store) AppendMessage(ctx context.Context, m protocol.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (
			id, session_id, type, role, content, tool_name, tool_input, tool_output,
			is_error, duration_ms, timestamp
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.SessionID, m.Type, m.Role, m.Content, m.ToolName, m.ToolInput, m.ToolOutput,
		m.IsError, m.DurationMS, formatTime(m.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("storage: append message: %w", err)
	}
	return nil
}

// UpdateMessage patches only the columns named by changes, leaving the
// rest of the row untouched.
func (s *Store) UpdateMessage(ctx context.Context, sessionID, messageID string, c protocol.MessageChanges) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if c.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, derefOrEmpty(*c.Content))
	}
	if c.ToolOutput != nil {
		sets = append(sets, "tool_output = ?")
		args = append(args, derefOrEmpty(*c.ToolOutput))
	}
	if c.IsError != nil {
		sets = append(sets, "is_error = ?")
		args = append(args, *c.IsError)
	}
	if c.DurationMS != nil {
		sets = append(sets, "duration_ms = ?")
		args = append(args, *c.DurationMS)
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE messages SET " + joinSets(sets) + " WHERE id = ? AND session_id = ?"
	args = append(args, messageID, sessionID)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: update message: %w", err)
	}
	return nil
}

// CreateApproval records a newly pending approval onto its session row.
// Approval history only gains a row once the approval is decided; a
// pending approval lives in sessions.pending_approval_json until then,
// matching the session aggregate's own "pending_approval" field.
func (s *Store) CreateApproval(ctx context.Context, req protocol.ApprovalRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("storage: marshal approval: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET pending_approval_json = ? WHERE id = ?`, string(data), req.SessionID)
	if err != nil {
		return fmt.Errorf("storage: create approval: %w", err)
	}
	return nil
}

// ResolveApproval writes the decided approval to the audit log and clears
// the session's pending_approval_json.
func (s *Store) ResolveApproval(ctx context.Context, item protocol.ApprovalHistoryItem) error {
	proposed, err := json.Marshal(item.ProposedAmendment)
	if err != nil {
		return fmt.Errorf("storage: marshal proposed amendment: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: resolve approval: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO approval_history (
			id, session_id, request_id, type, tool_name, command, file_path, cwd,
			proposed_amendment, decision, created_at, decided_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		item.ID, item.SessionID, item.RequestID, item.Type, item.ToolName, item.Command,
		item.FilePath, item.Cwd, string(proposed), item.Decision,
		formatTime(item.CreatedAt), formatTime(item.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("storage: insert approval history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET pending_approval_json = '' WHERE id = ?`, item.SessionID); err != nil {
		return fmt.Errorf("storage: clear pending approval: %w", err)
	}

	return tx.Commit()
}

// GetSession reconstructs a session's full state from durable storage,
// including its transcript and any still-pending approval.
func (s *Store) GetSession(ctx context.Context, sessionID string) (protocol.SessionState, error) {
	var st protocol.SessionState
	var pendingJSON string
	var startedAt, lastActivityAt string

	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, codex_mode, custom_name, summary_candidate, status, work_status,
			branch, project_path, project_name, transcript_path, model, approval_policy,
			sandbox_mode, forked_from_session_id, last_tool, diff, plan, ended_reason,
			pending_approval_json, input_tokens, output_tokens, cached_tokens, context_window,
			revision, started_at, last_activity_at
		FROM sessions WHERE id = ?`, sessionID)
	err := row.Scan(
		&st.ID, &st.Provider, &st.CodexMode, &st.CustomName, &st.SummaryCandidate, &st.Status, &st.WorkStatus,
		&st.Branch, &st.ProjectPath, &st.ProjectName, &st.TranscriptPath, &st.Model, &st.ApprovalPolicy,
		&st.SandboxMode, &st.ForkedFromSessionID, &st.LastTool, &st.Diff, &st.Plan, &st.EndedReason,
		&pendingJSON, &st.Tokens.InputTokens, &st.Tokens.OutputTokens, &st.Tokens.CachedTokens, &st.Tokens.ContextWindow,
		&st.Revision, &startedAt, &lastActivityAt,
	)
	if err != nil {
		return protocol.SessionState{}, fmt.Errorf("storage: get session: %w", err)
	}
	if st.StartedAt, err = parseTime(startedAt); err != nil {
		return protocol.SessionState{}, err
	}
	if st.LastActivityAt, err = parseTime(lastActivityAt); err != nil {
		return protocol.SessionState{}, err
	}
	if pendingJSON != "" {
		var req protocol.ApprovalRequest
		if err := json.Unmarshal([]byte(pendingJSON), &req); err != nil {
			return protocol.SessionState{}, fmt.Errorf("storage: unmarshal pending approval: %w", err)
		}
		st.PendingApproval = &req
	}

	st.Messages, err = s.listMessages(ctx, sessionID)
	if err != nil {
		return protocol.SessionState{}, err
	}
	return st, nil
}

func (s *Store) listMessages(ctx context.Context, sessionID string) ([]protocol.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, type, role, content, tool_name, tool_input, tool_output,
			is_error, duration_ms, timestamp
		FROM messages WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("storage: list messages: %w", err)
	}
	defer rows.Close()

	var out []protocol.Message
	for rows.Next() {
		var m protocol.Message
		var ts string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Type, &m.Role, &m.Content, &m.ToolName,
			&m.ToolInput, &m.ToolOutput, &m.IsError, &m.DurationMS, &ts); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSummaries returns every session's summary projection, used to
// repopulate the registry on startup.
func (s *Store) ListSummaries(ctx context.Context) ([]protocol.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, project_path, project_name, transcript_path, model, custom_name,
			status, work_status, branch, pending_approval_json, codex_mode, approval_policy,
			sandbox_mode, revision, started_at, last_activity_at
		FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("storage: list summaries: %w", err)
	}
	defer rows.Close()

	var out []protocol.SessionSummary
	for rows.Next() {
		var sum protocol.SessionSummary
		var pendingJSON, startedAt, lastActivityAt string
		if err := rows.Scan(&sum.ID, &sum.Provider, &sum.ProjectPath, &sum.ProjectName, &sum.TranscriptPath,
			&sum.Model, &sum.CustomName, &sum.Status, &sum.WorkStatus, &sum.Branch, &pendingJSON,
			&sum.CodexMode, &sum.ApprovalPolicy, &sum.SandboxMode, &sum.Revision, &startedAt, &lastActivityAt); err != nil {
			return nil, fmt.Errorf("storage: scan summary: %w", err)
		}
		sum.HasPendingApproval = pendingJSON != ""
		if sum.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if sum.LastActivityAt, err = parseTime(lastActivityAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ListApprovalHistory returns a session's resolved approval audit log,
// most recent first.
func (s *Store) ListApprovalHistory(ctx context.Context, sessionID string) ([]protocol.ApprovalHistoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, request_id, type, tool_name, command, file_path, cwd,
			proposed_amendment, decision, created_at, decided_at
		FROM approval_history WHERE session_id = ? ORDER BY decided_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("storage: list approval history: %w", err)
	}
	defer rows.Close()

	out := []protocol.ApprovalHistoryItem{}
	for rows.Next() {
		var item protocol.ApprovalHistoryItem
		var proposed, createdAt, decidedAt string
		if err := rows.Scan(&item.ID, &item.SessionID, &item.RequestID, &item.Type, &item.ToolName,
			&item.Command, &item.FilePath, &item.Cwd, &proposed, &item.Decision, &createdAt, &decidedAt); err != nil {
			return nil, fmt.Errorf("storage: scan approval history: %w", err)
		}
		if proposed != "" {
			if err := json.Unmarshal([]byte(proposed), &item.ProposedAmendment); err != nil {
				return nil, fmt.Errorf("storage: unmarshal proposed amendment: %w", err)
			}
		}
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if item.DecidedAt, err = parseTime(decidedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func marshalApproval(req *protocol.ApprovalRequest) (string, error) {
	if req == nil {
		return "", nil
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("storage: marshal pending approval: %w", err)
	}
	return string(data), nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}
