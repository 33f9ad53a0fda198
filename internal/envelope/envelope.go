// Package envelope implements the wire wrapper every publish is wrapped in
// (spec.md §3 Envelope) and its JSON/MsgPack codecs.
//
// Grounded in _examples/adred-codev-ws_poc/src/message.go (MessageEnvelope /
// WrapMessage) for the envelope-wrapping shape, and
// _examples/original_source/relayx_py/{realtime,queue}.py for the field
// names and id/timestamp semantics (uuid4 id, "start" unix-millis field).
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Envelope is the structured wrapper around every application payload.
type Envelope struct {
	ClientID string          `json:"client_id" msgpack:"client_id"`
	ID       string          `json:"id" msgpack:"id"`
	Room     string          `json:"room" msgpack:"room"`
	Message  json.RawMessage `json:"message" msgpack:"message"`
	Start    int64           `json:"start" msgpack:"start"`
}

// New builds an envelope for a payload that has already been marshaled to
// JSON bytes, stamping a fresh UUIDv4 id and the current unix-millis clock.
func New(clientID, topic string, payload json.RawMessage) Envelope {
	return Envelope{
		ClientID: clientID,
		ID:       uuid.NewString(),
		Room:     topic,
		Message:  payload,
		Start:    time.Now().UnixMilli(),
	}
}

// EncodeJSON serializes the envelope for the core (push-consumer) variant.
func (e Envelope) EncodeJSON() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeJSON parses a JSON-encoded envelope off the wire.
func DecodeJSON(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

// wireEnvelope mirrors Envelope but carries Message as a decoded value
// rather than raw JSON bytes. vmihailenco/msgpack packs a []byte-kinded
// field (json.RawMessage included) as a MsgPack bin blob containing the
// literal JSON text, not as a native MsgPack string/number/map/array — that
// would ship "JSON wrapped in MsgPack" on the wire instead of a MsgPack
// value a spec-conformant consumer can decode natively. Routing the payload
// through `any` first gives the queue variant a true MsgPack encoding.
type wireEnvelope struct {
	ClientID string `msgpack:"client_id"`
	ID       string `msgpack:"id"`
	Room     string `msgpack:"room"`
	Message  any    `msgpack:"message"`
	Start    int64  `msgpack:"start"`
}

// EncodeMsgPack serializes the envelope for the queue (pull-consumer)
// variant, which uses MsgPack instead of JSON on the wire.
func (e Envelope) EncodeMsgPack() ([]byte, error) {
	var payload any
	if len(e.Message) > 0 {
		if err := json.Unmarshal(e.Message, &payload); err != nil {
			return nil, err
		}
	}
	return msgpack.Marshal(wireEnvelope{
		ClientID: e.ClientID,
		ID:       e.ID,
		Room:     e.Room,
		Message:  payload,
		Start:    e.Start,
	})
}

// DecodeMsgPack parses a MsgPack-encoded envelope off the wire, re-expressing
// the natively-decoded payload as JSON bytes so the rest of the SDK (which
// carries Envelope.Message as json.RawMessage throughout) sees a uniform
// representation regardless of wire variant.
func DecodeMsgPack(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return Envelope{}, err
	}
	raw, err := json.Marshal(w.Message)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ClientID: w.ClientID,
		ID:       w.ID,
		Room:     w.Room,
		Message:  raw,
		Start:    w.Start,
	}, nil
}

// MarshalPayload converts an arbitrary application payload (string, number,
// map, slice thereof) to the json.RawMessage the Envelope carries.
func MarshalPayload(payload any) (json.RawMessage, error) {
	return json.Marshal(payload)
}

// UnmarshalPayload decodes a raw envelope payload into a generic Go value
// (string, float64, map[string]any, or []any, per encoding/json's defaults).
func UnmarshalPayload(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
