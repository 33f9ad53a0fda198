package relayx

import (
	"errors"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Config{}, Opts{}); err == nil {
		t.Fatal("expected error for empty credentials")
	}
	if _, err := NewClient(Config{APIKey: "k"}, Opts{}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewClient(Config{Secret: "s"}, Opts{}); err == nil {
		t.Fatal("expected error for missing api_key")
	}
}

func TestNewClientSucceedsWithCredentials(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k", Secret: "s"}, Opts{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestOptsDefaultMaxRetries(t *testing.T) {
	o := Opts{}.withDefaults()
	if o.MaxRetries != defaultMaxRetries {
		t.Errorf("default MaxRetries = %d, want %d", o.MaxRetries, defaultMaxRetries)
	}

	o = Opts{MaxRetries: 9}.withDefaults()
	if o.MaxRetries != 9 {
		t.Errorf("explicit MaxRetries should be preserved, got %d", o.MaxRetries)
	}
}

func TestErrorKindString(t *testing.T) {
	err := configErrorf("bad topic %q", "x")
	var relayxErr *Error
	if !errors.As(err, &relayxErr) {
		t.Fatal("expected *Error")
	}
	if relayxErr.Kind != KindConfig {
		t.Errorf("Kind = %v, want CONFIG", relayxErr.Kind)
	}
	if relayxErr.Kind.String() != "CONFIG" {
		t.Errorf("Kind.String() = %q", relayxErr.Kind.String())
	}
}

func TestOnRejectsInvalidTopicBeforeConnect(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k", Secret: "s"}, Opts{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.On("CONNECTED", func([]byte) {}); err == nil {
		t.Error("expected error registering a reserved lifecycle name")
	}
	if _, err := c.Publish("has space", map[string]any{}); err == nil {
		t.Error("expected error publishing to an invalid topic")
	}
}
