// Package subscription fans session events out to subscribers and keeps a
// bounded replay ring per session so a client reconnecting with a known
// revision can catch up without a full snapshot. Delivery is a direct,
// synchronous call into each subscriber from inside Publish: a subscriber
// registered under Subscribe's lock is guaranteed to see every envelope
// published after that point, either live or via the ring's Backlog — a
// guarantee an async bus would not preserve without re-deriving it itself.
//
// watermill's gochannel was tried here first (the teacher wires watermill
// as its process-wide event bus) and dropped; see DESIGN.md for why.
package subscription

import (
	"sync"

	"github.com/robdel12/orbitdock/internal/protocol"
)

// replayRingSize bounds how many past events a session keeps for replay.
// A subscriber asking for a revision older than the ring's floor must fall
// back to a full snapshot.
const replayRingSize = 64

// subscriberBuffer is not referenced by Hub: there is no per-subscriber
// channel here. Publish calls each Subscriber directly, so a Subscriber
// that blocks delays Publish and the subscribers after it.
const subscriberBuffer = 64

// Envelope pairs a revision with the event published at that revision.
type Envelope struct {
	Revision uint64
	Event    protocol.Event
}

// ring is a fixed-size circular buffer of the most recent envelopes for
// one session, used to answer Subscribe{since_revision}.
type ring struct {
	mu      sync.Mutex
	entries []Envelope
	floor   uint64 // oldest revision still retained, 0 if ring has not wrapped
}

func newRing() *ring {
	return &ring{entries: make([]Envelope, 0, replayRingSize)}
}

func (r *ring) push(e Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if len(r.entries) > replayRingSize {
		dropped := r.entries[0]
		r.entries = r.entries[1:]
		r.floor = dropped.Revision + 1
	}
}

// since returns every retained envelope strictly after revision, and
// whether the ring could satisfy the request (false means the caller must
// fall back to a snapshot because the requested revision has aged out).
func (r *ring) since(revision uint64) ([]Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if revision < r.floor {
		return nil, false
	}
	out := make([]Envelope, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Revision > revision {
			out = append(out, e)
		}
	}
	return out, true
}

// Subscriber receives envelopes for one session.
type Subscriber func(Envelope)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Hub owns per-session rings and subscriber lists. One Hub serves the
// whole process; sessions are namespaced internally.
type Hub struct {
	mu          sync.RWMutex
	rings       map[string]*ring
	subscribers map[string][]subscriberEntry
	nextID      uint64
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		rings:       make(map[string]*ring),
		subscribers: make(map[string][]subscriberEntry),
	}
}

// Publish appends an event to a session's replay ring and delivers it to
// every live subscriber of that session. It is safe to call from a
// session actor's effect-draining loop.
func (h *Hub) Publish(sessionID string, revision uint64, event protocol.Event) {
	env := Envelope{Revision: revision, Event: event}

	h.mu.Lock()
	r, ok := h.rings[sessionID]
	if !ok {
		r = newRing()
		h.rings[sessionID] = r
	}
	subs := append([]subscriberEntry(nil), h.subscribers[sessionID]...)
	h.mu.Unlock()

	r.push(env)

	for _, s := range subs {
		s.fn(env)
	}
}

// SubscribeResult is what Subscribe returns: either a full snapshot because
// the requested revision could not be replayed, or a channel of envelopes
// to replay from.
type SubscribeResult struct {
	NeedsSnapshot bool
	Backlog       []Envelope
	Unsubscribe   func()
}

// Subscribe registers fn for future events on sessionID. If sinceRevision
// is non-nil and still within the replay ring, Backlog carries everything
// missed since then and fn only receives events after that point;
// otherwise NeedsSnapshot is true and the caller must send a fresh
// snapshot before relying on fn's stream.
func (h *Hub) Subscribe(sessionID string, sinceRevision *uint64, fn Subscriber) SubscribeResult {
	h.mu.Lock()
	r, ok := h.rings[sessionID]
	if !ok {
		r = newRing()
		h.rings[sessionID] = r
	}
	h.nextID++
	id := h.nextID
	h.subscribers[sessionID] = append(h.subscribers[sessionID], subscriberEntry{id: id, fn: fn})
	h.mu.Unlock()

	unsub := func() { h.unsubscribe(sessionID, id) }

	if sinceRevision == nil {
		return SubscribeResult{NeedsSnapshot: true, Unsubscribe: unsub}
	}
	backlog, ok := r.since(*sinceRevision)
	if !ok {
		return SubscribeResult{NeedsSnapshot: true, Unsubscribe: unsub}
	}
	return SubscribeResult{Backlog: backlog, Unsubscribe: unsub}
}

func (h *Hub) unsubscribe(sessionID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[sessionID]
	for i, e := range subs {
		if e.id == id {
			h.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// DropSession releases a session's ring and subscriber list, e.g. once it
// has ended and every client has disconnected.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rings, sessionID)
	delete(h.subscribers, sessionID)
}

// Close releases Hub resources. It exists so callers can treat Hub like
// the other long-lived infrastructure they defer-close at shutdown,
// even though there is currently nothing here that needs releasing.
func (h *Hub) Close() error {
	return nil
}
