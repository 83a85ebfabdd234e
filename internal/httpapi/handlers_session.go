package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robdel12/orbitdock/internal/apperr"
	"github.com/robdel12/orbitdock/internal/bridge"
	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/registry"
	"github.com/robdel12/orbitdock/internal/sessionactor"
	"github.com/robdel12/orbitdock/internal/transition"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Summaries())
}

type createSessionRequest struct {
	Provider       protocol.Provider `json:"provider"`
	ProjectPath    string            `json:"project_path"`
	ProjectName    string            `json:"project_name,omitempty"`
	Model          string            `json:"model,omitempty"`
	ApprovalPolicy string            `json:"approval_policy,omitempty"`
	SandboxMode    string            `json:"sandbox_mode,omitempty"`
}

type createSessionResponse struct {
	Session protocol.SessionState `json:"session"`
}

// createSession starts a new session actor, persists its initial row and
// registers it, mirroring go-opencode's createSession handler but creating
// an actor+Handle instead of an in-process Session value.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindInputMalformed, "invalid request body", err))
		return
	}
	if req.ProjectPath == "" {
		writeAppError(w, apperr.New(apperr.KindInputMalformed, "project_path is required"))
		return
	}

	now := s.deps.Clock()
	initial := protocol.SessionState{
		ID:             registry.NewSessionID(),
		Provider:       req.Provider,
		ProjectPath:    req.ProjectPath,
		ProjectName:    req.ProjectName,
		Model:          req.Model,
		ApprovalPolicy: req.ApprovalPolicy,
		SandboxMode:    req.SandboxMode,
		Status:         protocol.SessionActive,
		WorkStatus:     protocol.WorkWaiting,
		StartedAt:      now,
		LastActivityAt: now,
	}

	if err := s.deps.Store.CreateSession(r.Context(), initial); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindPersistenceFailure, "failed to persist new session", err))
		return
	}

	handle := sessionactor.Spawn(s.deps.Ctx, initial, s.sessionDependencies())
	s.deps.Registry.Register(handle, "")
	s.deps.Registry.UpdateSummary(initial.Summary())

	writeJSON(w, http.StatusCreated, createSessionResponse{Session: initial})
}

// sessionDependencies wires a freshly spawned actor's effect sinks to the
// process-wide persistence writer, subscription hub, registry and naming
// guard — the same wiring every session actor in the process shares.
func (s *Server) sessionDependencies() sessionactor.Dependencies {
	return sessionactor.Dependencies{
		Clock:     s.deps.Clock,
		Persist:   s.deps.Writer.AsPersistDependency(context.Background()),
		Broadcast: s.deps.Hub.Publish,
		Subscribe: s.deps.Hub.Subscribe,
		Notify:    s.deps.Registry.UpdateSummary,
		RequestNaming: func(sessionID string) {
			if s.deps.Naming == nil || s.deps.Propose == nil {
				return
			}
			handle, ok := s.deps.Registry.Get(sessionID)
			if !ok {
				return
			}
			snap := handle.Snapshot()
			s.deps.Naming.Request(context.Background(), sessionID, snap.SummaryCandidate, s.deps.Propose, func(name string) {
				handle.TrySend(sessionactor.Mutate{Input: transition.CustomNameSet{Name: name}})
			})
		},
	}
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	handle, ok := s.deps.Registry.Get(sessionID)
	if ok {
		writeJSON(w, http.StatusOK, handle.Snapshot())
		return
	}

	st, err := s.deps.Store.GetSession(r.Context(), sessionID)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindSessionNotFound, "session not found", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type renameSessionRequest struct {
	Name string `json:"name"`
}

func (s *Server) renameSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	handle, ok := s.deps.Registry.Get(sessionID)
	if !ok {
		writeAppError(w, apperr.New(apperr.KindSessionNotFound, "session not found"))
		return
	}

	var req renameSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindInputMalformed, "invalid request body", err))
		return
	}

	if err := handle.Send(r.Context(), sessionactor.SetCustomNameAndNotify{Name: req.Name}); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindInternal, "failed to rename session", err))
		return
	}
	applied := make(chan protocol.SessionState, 1)
	if err := handle.Send(r.Context(), sessionactor.GetSnapshot{Reply: applied}); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindInternal, "failed to rename session", err))
		return
	}
	var renamed protocol.SessionState
	select {
	case renamed = <-applied:
	case <-r.Context().Done():
		writeAppError(w, apperr.Wrap(apperr.KindInternal, "rename request cancelled", r.Context().Err()))
		return
	}
	if b, hasBridge := s.deps.Registry.GetBridge(sessionID); hasBridge {
		_ = b.Send(r.Context(), bridge.SetThreadName{Name: req.Name})
	}
	writeJSON(w, http.StatusOK, renamed)
}

// forkSession asks the session's connector to fork, per spec.md §9 open
// question (c): forking an Ended source session is allowed, starting the
// new session Active with its transcript copied up to the fork point.
func (s *Server) forkSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	handle, ok := s.deps.Registry.Get(sessionID)
	if !ok {
		writeAppError(w, apperr.New(apperr.KindSessionNotFound, "session not found"))
		return
	}
	b, hasBridge := s.deps.Registry.GetBridge(sessionID)
	if !hasBridge {
		writeAppError(w, apperr.New(apperr.KindConnectorFailure, "no connector attached to session"))
		return
	}

	reply := make(chan bridge.ForkResult, 1)
	if err := b.Send(r.Context(), bridge.ForkSession{Reply: reply}); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindConnectorFailure, "failed to request fork", err))
		return
	}
	var result bridge.ForkResult
	select {
	case result = <-reply:
	case <-r.Context().Done():
		writeAppError(w, apperr.Wrap(apperr.KindInternal, "fork request cancelled", r.Context().Err()))
		return
	}
	if result.Err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindConnectorFailure, "connector fork failed", result.Err))
		return
	}

	source := handle.Snapshot()
	now := s.deps.Clock()
	forked := protocol.SessionState{
		ID:                  result.SessionID,
		Provider:            source.Provider,
		ProjectPath:         source.ProjectPath,
		ProjectName:         source.ProjectName,
		Model:               source.Model,
		ApprovalPolicy:      source.ApprovalPolicy,
		SandboxMode:         source.SandboxMode,
		Status:              protocol.SessionActive,
		WorkStatus:          protocol.WorkWaiting,
		Messages:            append([]protocol.Message(nil), source.Messages...),
		ForkedFromSessionID: source.ID,
		StartedAt:           now,
		LastActivityAt:      now,
	}
	if err := s.deps.Store.CreateSession(r.Context(), forked); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindPersistenceFailure, "failed to persist forked session", err))
		return
	}

	newHandle := sessionactor.Spawn(s.deps.Ctx, forked, s.sessionDependencies())
	s.deps.Registry.Register(newHandle, "")
	s.deps.Registry.UpdateSummary(forked.Summary())
	writeJSON(w, http.StatusCreated, createSessionResponse{Session: forked})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	handle, ok := s.deps.Registry.Get(sessionID)
	if !ok {
		writeAppError(w, apperr.New(apperr.KindSessionNotFound, "session not found"))
		return
	}

	if b, hasBridge := s.deps.Registry.GetBridge(sessionID); hasBridge {
		_ = b.Send(r.Context(), bridge.EndSession{})
	}
	if err := handle.Send(r.Context(), sessionactor.EndLocally{Reason: "ended via HTTP API"}); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindInternal, "failed to end session", err))
		return
	}
	applied := make(chan protocol.SessionState, 1)
	if err := handle.Send(r.Context(), sessionactor.GetSnapshot{Reply: applied}); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindInternal, "failed to end session", err))
		return
	}
	select {
	case <-applied:
	case <-r.Context().Done():
		writeAppError(w, apperr.Wrap(apperr.KindInternal, "end request cancelled", r.Context().Err()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) listApprovalHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	items, err := s.deps.Store.ListApprovalHistory(r.Context(), sessionID)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindPersistenceFailure, "failed to load approval history", err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}
