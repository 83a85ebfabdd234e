// Package naming runs the background job that proposes a human-readable
// name for sessions that have not been given a custom one, grounded on
// the original implementation's ai_naming module: a dedup guard so a
// session is never named twice concurrently, bounded by a hard timeout so
// a slow or hung namer never blocks session teardown.
package naming

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// namingTimeout bounds how long a single naming attempt may run.
const namingTimeout = 10 * time.Second

// Proposer produces a candidate name from the session's early transcript.
// Implementations call out to whatever naming backend is configured; this
// package only owns the dedup and timeout policy around it.
type Proposer func(ctx context.Context, sessionID string, transcript string) (string, error)

// Guard deduplicates in-flight naming attempts per session, mirroring the
// original NamingGuard's claim-based mutex set.
type Guard struct {
	mu      sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// tryClaim reports whether sessionID was not already being named, and
// claims it if so.
func (g *Guard) tryClaim(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inFlight[sessionID]; ok {
		return false
	}
	g.inFlight[sessionID] = struct{}{}
	return true
}

func (g *Guard) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, sessionID)
}

// Request proposes a name for sessionID using propose, calling onNamed
// with the result if one was produced before namingTimeout elapses. It is
// a no-op if a naming attempt for this session is already in flight.
func (g *Guard) Request(ctx context.Context, sessionID, transcript string, propose Proposer, onNamed func(name string)) {
	if !g.tryClaim(sessionID) {
		return
	}
	go func() {
		defer g.release(sessionID)

		ctx, cancel := context.WithTimeout(ctx, namingTimeout)
		defer cancel()

		name, err := propose(ctx, sessionID, transcript)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("naming: proposal failed")
			return
		}
		if name == "" {
			return
		}
		onNamed(name)
	}()
}
