package diagnostics

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func newTestReporter() *Reporter {
	log := zerolog.New(os.Stderr)
	return New(log)
}

func TestReportPermissionViolationExtractsSubject(t *testing.T) {
	r := newTestReporter()
	errText := `permissions violation for subscription to "abc.def.orders.create"`
	topic, recognized := r.Report(errText)
	if !recognized {
		t.Fatal("expected permissions violation to be recognized")
	}
	if topic != "orders.create" {
		t.Errorf("extracted topic = %q, want %q", topic, "orders.create")
	}
}

func TestReportAuthViolationLoggedOnce(t *testing.T) {
	r := newTestReporter()
	_, recognized := r.Report("Authorization Violation - bad credentials")
	if !recognized {
		t.Fatal("expected Authorization Violation to be recognized")
	}
	if !r.authLogged {
		t.Error("expected authLogged latch to be set after first occurrence")
	}
}

func TestReportUnrecognized(t *testing.T) {
	r := newTestReporter()
	_, recognized := r.Report("connection reset by peer")
	if recognized {
		t.Error("expected an unrelated transport error to be unrecognized")
	}
}

func TestSubjectFromViolationNoMatch(t *testing.T) {
	if got := subjectFromViolation("no quotes here"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
