// Package registry owns the process-wide map from session id to its
// running actor handle, plus the reverse index from connector-assigned
// thread/process id back to session id, and the set of list subscribers
// watching for summary changes. It mirrors the handle-ownership pattern
// the teacher's session service uses for its active-session map, adapted
// from owning session state directly to owning sessionactor.Handles.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/robdel12/orbitdock/internal/bridge"
	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/sessionactor"
)

// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionactor.Handle
	bridges     map[string]*bridge.Bridge
	byThreadID  map[string]string // connector thread/process id -> session id
	summaries   map[string]protocol.SessionSummary
	listeners   []chan protocol.ListChangedPayload
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		sessions:   make(map[string]*sessionactor.Handle),
		bridges:    make(map[string]*bridge.Bridge),
		byThreadID: make(map[string]string),
		summaries:  make(map[string]protocol.SessionSummary),
	}
}

// NewSessionID mints an opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Register adds a running actor under its own id, optionally indexed by a
// connector thread id for later lookup from bridge events.
func (r *Registry) Register(h *sessionactor.Handle, threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[h.ID] = h
	if threadID != "" {
		r.byThreadID[threadID] = h.ID
	}
}

// Get returns the handle for a session id, if any.
func (r *Registry) Get(sessionID string) (*sessionactor.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[sessionID]
	return h, ok
}

// GetByThreadID resolves a connector thread id to its session handle.
func (r *Registry) GetByThreadID(threadID string) (*sessionactor.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byThreadID[threadID]
	if !ok {
		return nil, false
	}
	h, ok := r.sessions[sid]
	return h, ok
}

// RegisterBridge associates a running connector bridge with a session so
// transports can dispatch actions (steer, interrupt, fork) to it without
// needing their own session-id-to-bridge bookkeeping.
func (r *Registry) RegisterBridge(sessionID string, b *bridge.Bridge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bridges[sessionID] = b
}

// GetBridge returns the connector bridge for a session, if one is attached.
// A session with no live connector (e.g. replaying history only) has none.
func (r *Registry) GetBridge(sessionID string) (*bridge.Bridge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bridges[sessionID]
	return b, ok
}

// Remove drops a session from the registry, e.g. once it has ended and
// been persisted. It does not stop the actor goroutine; callers are
// expected to have already cancelled its context. List subscribers are
// notified with action "removed" if the session was known.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, existed := r.summaries[sessionID]
	delete(r.sessions, sessionID)
	delete(r.bridges, sessionID)
	delete(r.summaries, sessionID)
	for tid, sid := range r.byThreadID {
		if sid == sessionID {
			delete(r.byThreadID, tid)
		}
	}
	if existed {
		r.notifyListLocked(protocol.ListChangedPayload{Action: "removed", Summary: s})
	}
}

// UpdateSummary records the latest summary for a session and fans it out
// to list subscribers, pruning any that can no longer receive. The action
// is "created" the first time a session id is seen, "updated" thereafter.
func (r *Registry) UpdateSummary(s protocol.SessionSummary) {
	r.mu.Lock()
	_, existed := r.summaries[s.ID]
	r.summaries[s.ID] = s
	action := "updated"
	if !existed {
		action = "created"
	}
	r.notifyListLocked(protocol.ListChangedPayload{Action: action, Summary: s})
	r.mu.Unlock()
}

func (r *Registry) notifyListLocked(ev protocol.ListChangedPayload) {
	listeners := make([]chan protocol.ListChangedPayload, 0, len(r.listeners))
	for _, l := range r.listeners {
		select {
		case l <- ev:
			listeners = append(listeners, l)
		default:
			// Slow or closed subscriber; drop it from the list rather
			// than blocking every session's actor on it.
		}
	}
	r.listeners = listeners
}

// Summaries returns a snapshot of every known session's summary.
func (r *Registry) Summaries() []protocol.SessionSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.SessionSummary, 0, len(r.summaries))
	for _, s := range r.summaries {
		out = append(out, s)
	}
	return out
}

// SubscribeList atomically captures a full snapshot of every known
// session's summary and registers a channel for future list-relevant
// changes, under the same lock, so no UpdateSummary/Remove in between can
// be both missed from the snapshot and replayed on the channel (or vice
// versa) — the same join race the per-session subscription layer avoids.
func (r *Registry) SubscribeList(buffer int) ([]protocol.SessionSummary, <-chan protocol.ListChangedPayload) {
	ch := make(chan protocol.ListChangedPayload, buffer)
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.SessionSummary, 0, len(r.summaries))
	for _, s := range r.summaries {
		out = append(out, s)
	}
	r.listeners = append(r.listeners, ch)
	return out, ch
}
