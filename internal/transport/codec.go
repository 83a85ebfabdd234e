package transport

import (
	"encoding/json"
	"fmt"

	"github.com/robdel12/orbitdock/internal/protocol"
)

// decodeClientCommand parses one inbound websocket frame into a
// protocol.ClientCommand, dispatching on its "kind" field to the concrete
// payload type so callers can type-switch on cmd.Payload without further
// decoding.
func decodeClientCommand(raw []byte) (protocol.ClientCommand, error) {
	var envelope struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return protocol.ClientCommand{}, fmt.Errorf("transport: invalid envelope: %w", err)
	}

	var payload any
	switch envelope.Kind {
	case protocol.ClientKindSubscribe:
		payload = &protocol.SubscribePayload{}
	case protocol.ClientKindSendMessage:
		payload = &protocol.SendMessagePayload{}
	case protocol.ClientKindDecide:
		payload = &protocol.DecideApprovalPayload{}
	case protocol.ClientKindSteer:
		payload = &protocol.SteerTurnPayload{}
	case protocol.ClientKindSetName:
		payload = &protocol.SetCustomNamePayload{}
	case protocol.ClientKindEnd:
		payload = &protocol.EndSessionPayload{}
	case protocol.ClientKindInterrupt:
		payload = &protocol.InterruptPayload{}
	case protocol.ClientKindCompact:
		payload = &protocol.CompactPayload{}
	case protocol.ClientKindUndo:
		payload = &protocol.UndoPayload{}
	case protocol.ClientKindRollback:
		payload = &protocol.RollbackPayload{}
	case protocol.ClientKindSubscribeList:
		payload = &protocol.SubscribeListPayload{}
	default:
		return protocol.ClientCommand{}, fmt.Errorf("transport: unknown client command kind %q", envelope.Kind)
	}

	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, payload); err != nil {
			return protocol.ClientCommand{}, fmt.Errorf("transport: invalid payload for %q: %w", envelope.Kind, err)
		}
	}

	return protocol.ClientCommand{Kind: envelope.Kind, Payload: payload}, nil
}

func encodeServerMessage(msg protocol.ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}
