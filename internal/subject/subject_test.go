package subject

import "testing"

func TestIsValidForSubscription(t *testing.T) {
	cases := []struct {
		topic string
		want  bool
	}{
		{"", false},
		{"orders", true},
		{"orders.created", true},
		{"orders.*", true},
		{"orders.>", true},
		{">", true},
		{"has space", false},
		{"has$dollar", false},
		{"CONNECTED", false},
		{"DISCONNECTED", false},
		{"RECONN_FAIL", false},
	}
	for _, c := range cases {
		if got := IsValidForSubscription(c.topic); got != c.want {
			t.Errorf("IsValidForSubscription(%q) = %v, want %v", c.topic, got, c.want)
		}
	}
}

func TestIsValidForPublish(t *testing.T) {
	cases := []struct {
		topic string
		want  bool
	}{
		{"orders.created", true},
		{"orders.*", false},
		{"orders.>", false},
		{">", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsValidForPublish(c.topic); got != c.want {
			t.Errorf("IsValidForPublish(%q) = %v, want %v", c.topic, got, c.want)
		}
	}
}

func TestMatchesWildcardRouting(t *testing.T) {
	// Scenario 2 from spec.md §8: hello.> and hello.* both match hello.world;
	// only hello.> matches hello.a.b.
	if !Matches("hello.>", "hello.world") {
		t.Error("hello.> should match hello.world")
	}
	if !Matches("hello.*", "hello.world") {
		t.Error("hello.* should match hello.world")
	}
	if !Matches("hello.>", "hello.a.b") {
		t.Error("hello.> should match hello.a.b")
	}
	if Matches("hello.*", "hello.a.b") {
		t.Error("hello.* should not match hello.a.b")
	}
}

func TestMatchesLiteral(t *testing.T) {
	if !Matches("orders.created", "orders.created") {
		t.Error("identical literal subjects should match")
	}
	if Matches("orders.created", "orders.cancelled") {
		t.Error("differing literal subjects should not match")
	}
}

func TestWireTopicRoundTrip(t *testing.T) {
	hash := "abc123"
	topic := "orders.created"
	wire := WireTopic(hash, topic)
	if wire != "abc123.orders.created" {
		t.Fatalf("unexpected wire topic: %s", wire)
	}
	if got := StripHash(hash, wire); got != topic {
		t.Errorf("StripHash round-trip = %q, want %q", got, topic)
	}
}

func TestPresenceVariant(t *testing.T) {
	wire := WireTopic("hash", "a")
	if got := PresenceVariant(wire); got != "hash.a_presence" {
		t.Errorf("PresenceVariant = %q", got)
	}
}

func TestIsReserved(t *testing.T) {
	for _, name := range []string{Connected, Disconnected, Reconnect, Reconnected, Reconnecting, ReconnFail, MessageResend} {
		if !IsReserved(name) {
			t.Errorf("%s should be reserved", name)
		}
	}
	if IsReserved("orders.created") {
		t.Error("orders.created should not be reserved")
	}
}
