package creds

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaterializeContainsFences(t *testing.T) {
	out, err := Materialize("jwt-value", "seed-value")
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if !strings.Contains(out, "-----BEGIN NATS USER JWT-----\njwt-value") {
		t.Error("missing JWT fence or value")
	}
	if !strings.Contains(out, "------END NATS USER JWT------") {
		t.Error("missing asymmetric-dash closing JWT fence")
	}
	if !strings.Contains(out, "-----BEGIN USER NKEY SEED-----\nseed-value") {
		t.Error("missing seed fence or value")
	}
}

func TestMaterializeEmptyFields(t *testing.T) {
	if _, err := Materialize("", "seed"); err == nil {
		t.Error("expected error for empty api_key")
	}
	if _, err := Materialize("jwt", ""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestWriteFilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.creds")
	got, err := WriteFile(path, "jwt", "seed")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got != path {
		t.Errorf("WriteFile returned %q, want %q", got, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("creds file mode = %o, want 0600", perm)
	}
}
