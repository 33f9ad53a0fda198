package envelope

import (
	"encoding/json"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestEncodeDecodeJSONRoundTrip(t *testing.T) {
	payload, err := MarshalPayload(map[string]any{"n": float64(1)})
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}
	env := New("client-1", "orders", payload)

	encoded, err := env.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	decoded, err := DecodeJSON(encoded)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}

	if decoded.ClientID != env.ClientID || decoded.ID != env.ID || decoded.Room != env.Room || decoded.Start != env.Start {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, env)
	}
	if string(decoded.Message) != string(env.Message) {
		t.Errorf("payload mismatch: got %s, want %s", decoded.Message, env.Message)
	}
}

func TestEncodeDecodeMsgPackRoundTrip(t *testing.T) {
	payload, _ := MarshalPayload("hello")
	env := New("client-2", "q.a", payload)

	encoded, err := env.EncodeMsgPack()
	if err != nil {
		t.Fatalf("EncodeMsgPack: %v", err)
	}
	decoded, err := DecodeMsgPack(encoded)
	if err != nil {
		t.Fatalf("DecodeMsgPack: %v", err)
	}
	if decoded.ClientID != env.ClientID || decoded.Room != env.Room {
		t.Errorf("msgpack round-trip mismatch: got %+v, want %+v", decoded, env)
	}

	v, err := UnmarshalPayload(decoded.Message)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	if v != "hello" {
		t.Errorf("payload = %v, want %q", v, "hello")
	}
}

// TestEncodeMsgPackIsNativeValue guards against regressing to packing the
// JSON-encoded payload as a MsgPack bin blob: a native MsgPack string must
// decode straight back out with msgpack.Unmarshal without ever touching JSON.
func TestEncodeMsgPackIsNativeValue(t *testing.T) {
	payload, _ := MarshalPayload("hello")
	env := New("client-3", "q.a", payload)

	encoded, err := env.EncodeMsgPack()
	if err != nil {
		t.Fatalf("EncodeMsgPack: %v", err)
	}

	var w wireEnvelope
	if err := msgpack.Unmarshal(encoded, &w); err != nil {
		t.Fatalf("msgpack.Unmarshal: %v", err)
	}
	if w.Message != "hello" {
		t.Errorf("wire payload = %#v, want native string %q", w.Message, "hello")
	}
}

func TestUnmarshalPayloadPrimitives(t *testing.T) {
	raw := json.RawMessage(`{"a":1,"b":[1,2,3]}`)
	v, err := UnmarshalPayload(raw)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", v)
	}
	if m["a"] != float64(1) {
		t.Errorf("a = %v, want 1", m["a"])
	}
}

func TestNewStampsFreshID(t *testing.T) {
	a := New("c", "t", json.RawMessage(`null`))
	b := New("c", "t", json.RawMessage(`null`))
	if a.ID == b.ID {
		t.Error("expected distinct UUIDs per envelope")
	}
}
