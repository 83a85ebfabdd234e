// Package transport implements OrbitDock's websocket duplex stream: one
// connection serves one client, which may subscribe to many sessions over
// its lifetime. Grounded on go-memsh's api.APIServer.HandleREPL (gorilla
// upgrader, blocking read loop feeding a per-request dispatch) adapted from
// a single JSON-RPC session to OrbitDock's subscribe/command/event protocol,
// with a dedicated write-loop goroutine added since gorilla/websocket
// requires a connection have at most one concurrent writer.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robdel12/orbitdock/internal/apperr"
	"github.com/robdel12/orbitdock/internal/bridge"
	"github.com/robdel12/orbitdock/internal/protocol"
	"github.com/robdel12/orbitdock/internal/registry"
	"github.com/robdel12/orbitdock/internal/sessionactor"
	"github.com/robdel12/orbitdock/internal/subscription"
	"github.com/robdel12/orbitdock/internal/transition"
)

// outboundBuffer bounds a connection's outbound queue; a write-loop that
// falls behind this far gets its connection closed rather than blocking
// every session publishing to it.
const outboundBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming requests and serves OrbitDock's websocket
// protocol against the process-wide registry and subscription hub.
type Handler struct {
	Registry *registry.Registry
	Hub      *subscription.Hub
}

func NewHandler(reg *registry.Registry, hub *subscription.Hub) *Handler {
	return &Handler{Registry: reg, Hub: hub}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("transport: websocket upgrade failed")
		return
	}

	c := &connection{
		conn:     conn,
		registry: h.Registry,
		outbound: make(chan protocol.ServerMessage, outboundBuffer),
	}
	c.run(r.Context())
}

// connection owns one upgraded websocket and every subscription it has
// opened across its lifetime; subs is keyed by session id so a client
// ending one subscription (or the session ending) can unwind cleanly
// without touching its others.
type connection struct {
	conn     *websocket.Conn
	registry *registry.Registry
	outbound chan protocol.ServerMessage

	mu   sync.Mutex
	subs map[string]func()
}

func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.conn.Close()
	defer c.closeAllSubscriptions()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()

	c.readLoop(ctx)
	cancel()
	wg.Wait()
}

func (c *connection) readLoop(ctx context.Context) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := decodeClientCommand(raw)
		if err != nil {
			c.sendError(ctx, "", "invalid_command", err.Error())
			continue
		}
		c.dispatch(ctx, cmd)
	}
}

func (c *connection) writeLoop(ctx context.Context) {
	const pingInterval = 30 * time.Second
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			payload, err := encodeServerMessage(msg)
			if err != nil {
				log.Warn().Err(err).Msg("transport: failed to encode server message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) dispatch(ctx context.Context, cmd protocol.ClientCommand) {
	switch payload := cmd.Payload.(type) {
	case *protocol.SubscribePayload:
		c.handleSubscribe(ctx, payload)
	case *protocol.SendMessagePayload:
		c.handleSendMessage(ctx, payload)
	case *protocol.DecideApprovalPayload:
		c.handleDecide(ctx, payload)
	case *protocol.SteerTurnPayload:
		c.handleSteer(ctx, payload)
	case *protocol.SetCustomNamePayload:
		c.handleSetName(ctx, payload)
	case *protocol.EndSessionPayload:
		c.handleEnd(ctx, payload)
	case *protocol.InterruptPayload:
		c.dispatchBridgeAction(ctx, payload.SessionID, bridge.Interrupt{})
	case *protocol.CompactPayload:
		c.dispatchBridgeAction(ctx, payload.SessionID, bridge.Compact{})
	case *protocol.UndoPayload:
		c.dispatchBridgeAction(ctx, payload.SessionID, bridge.Undo{})
	case *protocol.RollbackPayload:
		c.dispatchBridgeAction(ctx, payload.SessionID, bridge.ThreadRollback{NumTurns: payload.NumTurns})
	case *protocol.SubscribeListPayload:
		c.handleSubscribeList(ctx)
	default:
		c.sendError(ctx, "", "unknown_command", "unrecognized client command")
	}
}

// handleSubscribe joins a session's event stream. The snapshot-or-backlog
// decision and the live subscriber registration are assembled in one
// sessionactor.Subscribe command so no Broadcast from a later command can
// land between the two (spec.md §4.5): the actor is the only place that
// can see "current state" and "not yet registered" at the same instant.
func (c *connection) handleSubscribe(ctx context.Context, p *protocol.SubscribePayload) {
	handle, ok := c.registry.Get(p.SessionID)
	if !ok {
		c.sendError(ctx, p.SessionID, string(apperr.KindSessionNotFound), "session not found")
		return
	}

	reply := make(chan sessionactor.SubscribeReply, 1)
	cmd := sessionactor.Subscribe{
		SinceRevision: p.SinceRevision,
		Fn: func(env subscription.Envelope) {
			c.send(ctx, protocol.ServerMessage{
				Kind:    protocol.ServerKindEvent,
				Payload: protocol.EventPayload{Revision: env.Revision, Event: env.Event},
			})
		},
		Reply: reply,
	}
	if err := handle.Send(ctx, cmd); err != nil {
		c.sendError(ctx, p.SessionID, string(apperr.KindInternal), "failed to subscribe")
		return
	}

	var sub sessionactor.SubscribeReply
	select {
	case sub = <-reply:
	case <-ctx.Done():
		return
	}

	c.mu.Lock()
	if c.subs == nil {
		c.subs = make(map[string]func())
	}
	if existing, had := c.subs[p.SessionID]; had {
		existing()
	}
	c.subs[p.SessionID] = sub.Result.Unsubscribe
	c.mu.Unlock()

	if sub.Result.NeedsSnapshot {
		c.send(ctx, protocol.ServerMessage{
			Kind:    protocol.ServerKindSnapshot,
			Payload: protocol.SnapshotPayload{State: sub.State},
		})
		return
	}
	for _, env := range sub.Result.Backlog {
		c.send(ctx, protocol.ServerMessage{
			Kind:    protocol.ServerKindEvent,
			Payload: protocol.EventPayload{Revision: env.Revision, Event: env.Event},
		})
	}
}

func (c *connection) handleSendMessage(ctx context.Context, p *protocol.SendMessagePayload) {
	handle, ok := c.registry.Get(p.SessionID)
	if !ok {
		c.sendError(ctx, p.SessionID, string(apperr.KindSessionNotFound), "session not found")
		return
	}
	msg := protocol.Message{
		ID:        uuid.NewString(),
		SessionID: p.SessionID,
		Type:      protocol.MessageUser,
		Role:      protocol.RoleUser,
		Content:   p.Content,
		Timestamp: time.Now(),
	}
	if err := handle.Send(ctx, sessionactor.Mutate{Input: transition.MessageCreated{Message: msg}}); err != nil {
		c.sendError(ctx, p.SessionID, string(apperr.KindInternal), "failed to record message")
		return
	}
	if b, hasBridge := c.registry.GetBridge(p.SessionID); hasBridge {
		_ = b.Send(ctx, bridge.SendMessage{Content: p.Content})
	}
}

func (c *connection) handleDecide(ctx context.Context, p *protocol.DecideApprovalPayload) {
	handle, ok := c.registry.Get(p.SessionID)
	if !ok {
		c.sendError(ctx, p.SessionID, string(apperr.KindSessionNotFound), "session not found")
		return
	}
	b, hasBridge := c.registry.GetBridge(p.SessionID)
	if !hasBridge {
		c.sendError(ctx, p.SessionID, string(apperr.KindConnectorFailure), "no connector attached to session")
		return
	}

	snap := handle.Snapshot()
	if snap.PendingApproval == nil || snap.PendingApproval.ID != p.RequestID {
		c.sendError(ctx, p.SessionID, string(apperr.KindApprovalNotFound), "no matching pending approval")
		return
	}

	var action bridge.Action
	switch snap.PendingApproval.Type {
	case protocol.ApprovalExec:
		action = bridge.ApproveExec{RequestID: p.RequestID, Decision: p.Decision, ProposedAmendment: snap.PendingApproval.ProposedAmendment}
	case protocol.ApprovalPatch:
		action = bridge.ApprovePatch{RequestID: p.RequestID, Decision: p.Decision}
	case protocol.ApprovalQuestion:
		action = bridge.AnswerQuestion{RequestID: p.RequestID, Answers: []string{string(p.Decision)}}
	default:
		c.sendError(ctx, p.SessionID, string(apperr.KindInternal), "pending approval has unknown type")
		return
	}
	if err := b.Send(ctx, action); err != nil {
		c.sendError(ctx, p.SessionID, string(apperr.KindConnectorFailure), "failed to deliver decision")
	}
}

func (c *connection) handleSteer(ctx context.Context, p *protocol.SteerTurnPayload) {
	handle, ok := c.registry.Get(p.SessionID)
	if !ok {
		c.sendError(ctx, p.SessionID, string(apperr.KindSessionNotFound), "session not found")
		return
	}
	b, hasBridge := c.registry.GetBridge(p.SessionID)
	if !hasBridge {
		c.sendError(ctx, p.SessionID, string(apperr.KindConnectorFailure), "no connector attached to session")
		return
	}

	msg := protocol.Message{
		ID:         uuid.NewString(),
		SessionID:  p.SessionID,
		Type:       protocol.MessageUser,
		Role:       protocol.RoleUser,
		Content:    p.Content,
		ToolOutput: "pending",
		Timestamp:  time.Now(),
	}
	if err := handle.Send(ctx, sessionactor.Mutate{Input: transition.MessageCreated{Message: msg}}); err != nil {
		c.sendError(ctx, p.SessionID, string(apperr.KindInternal), "failed to record steer message")
		return
	}
	if err := b.Send(ctx, bridge.SteerTurn{Content: p.Content, MessageID: msg.ID}); err != nil {
		c.sendError(ctx, p.SessionID, string(apperr.KindConnectorFailure), "failed to deliver steer")
	}
}

func (c *connection) handleSetName(ctx context.Context, p *protocol.SetCustomNamePayload) {
	handle, ok := c.registry.Get(p.SessionID)
	if !ok {
		c.sendError(ctx, p.SessionID, string(apperr.KindSessionNotFound), "session not found")
		return
	}
	if err := handle.Send(ctx, sessionactor.SetCustomNameAndNotify{Name: p.Name}); err != nil {
		c.sendError(ctx, p.SessionID, string(apperr.KindInternal), "failed to rename session")
	}
}

func (c *connection) handleEnd(ctx context.Context, p *protocol.EndSessionPayload) {
	handle, ok := c.registry.Get(p.SessionID)
	if !ok {
		c.sendError(ctx, p.SessionID, string(apperr.KindSessionNotFound), "session not found")
		return
	}
	if b, hasBridge := c.registry.GetBridge(p.SessionID); hasBridge {
		_ = b.Send(ctx, bridge.EndSession{})
	}
	reason := p.Reason
	if reason == "" {
		reason = "ended via websocket"
	}
	if err := handle.Send(ctx, sessionactor.EndLocally{Reason: reason}); err != nil {
		c.sendError(ctx, p.SessionID, string(apperr.KindInternal), "failed to end session")
	}
}

// handleSubscribeList joins the process-wide session list feed: a snapshot
// of every known session's summary followed by a live stream of
// SessionListChanged-equivalent events (spec.md §4.5's "separate feed").
// Registry.SubscribeList assembles the snapshot and the listener
// registration under one lock, so no create/remove in between is both
// missed from the snapshot and replayed on the channel.
func (c *connection) handleSubscribeList(ctx context.Context) {
	snapshot, ch := c.registry.SubscribeList(outboundBuffer)
	c.send(ctx, protocol.ServerMessage{
		Kind:    protocol.ServerKindListSnapshot,
		Payload: protocol.ListSnapshotPayload{Sessions: snapshot},
	})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				c.send(ctx, protocol.ServerMessage{
					Kind:    protocol.ServerKindListChanged,
					Payload: ev,
				})
			}
		}
	}()
}

// dispatchBridgeAction forwards a connector-bound directive that needs no
// local state change of its own (interrupt/compact/undo/rollback) straight
// to the session's bridge.
func (c *connection) dispatchBridgeAction(ctx context.Context, sessionID string, action bridge.Action) {
	if _, ok := c.registry.Get(sessionID); !ok {
		c.sendError(ctx, sessionID, string(apperr.KindSessionNotFound), "session not found")
		return
	}
	b, hasBridge := c.registry.GetBridge(sessionID)
	if !hasBridge {
		c.sendError(ctx, sessionID, string(apperr.KindConnectorFailure), "no connector attached to session")
		return
	}
	if err := b.Send(ctx, action); err != nil {
		c.sendError(ctx, sessionID, string(apperr.KindConnectorFailure), "failed to deliver action")
	}
}

func (c *connection) send(ctx context.Context, msg protocol.ServerMessage) {
	select {
	case c.outbound <- msg:
	case <-ctx.Done():
	default:
		log.Warn().Msg("transport: outbound queue full, closing connection")
		_ = c.conn.Close()
	}
}

func (c *connection) sendError(ctx context.Context, sessionID, code, message string) {
	c.send(ctx, protocol.ServerMessage{
		Kind:    protocol.ServerKindError,
		Payload: protocol.ErrorPayload{Code: code, Message: message},
	})
	if sessionID != "" {
		log.Debug().Str("session_id", sessionID).Str("code", code).Msg("transport: command error")
	}
}

func (c *connection) closeAllSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsub := range c.subs {
		unsub()
	}
	c.subs = nil
}
