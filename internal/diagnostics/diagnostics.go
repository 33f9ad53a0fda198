// Package diagnostics classifies server-reported errors into the three
// user-visible diagnostics the spec maps them to (PERMISSION, AUTH, QUOTA)
// and renders a readable table for each, the way the upstream Python client
// does via its ErrorLogging.log_error (utils.py) — there `tabulate.tabulate`
// prints a two-column grid. No ascii-table library appears anywhere in the
// retrieval pack (checked: none of the teacher's or the wider corpus's
// go.mod files import one), so this renders the same two-column grid with
// the standard library's text/tabwriter instead of inventing a dependency.
package diagnostics

import (
	"fmt"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
)

// subjectFromViolation extracts the quoted subject out of a
// "permissions violation" server error string, skipping the leading
// namespace/hash tokens the wire subject carries ahead of the topic
// (utils.py's `if i > 1`): "abc.def.orders.create" -> "orders.create".
var quotedSubject = regexp.MustCompile(`"([^"]*)"`)

func subjectFromViolation(errText string) string {
	m := quotedSubject.FindStringSubmatch(errText)
	if m == nil {
		return ""
	}
	parts := strings.Split(m[1], ".")
	if len(parts) <= 2 {
		return ""
	}
	return strings.Join(parts[2:], ".")
}

// QuotaCode is the JetStream API error code for a message-limit breach.
const QuotaCode = 10077

// Reporter classifies and logs server errors without raising them, per
// spec.md §7's propagation policy (logged diagnostics, not raised errors).
// It keeps the Python client's per-session AUTH-once-logged latch
// (utils.py's __auth_err_logged), which is cleared only by constructing a
// new Reporter, never by reconnection.
type Reporter struct {
	log        zerolog.Logger
	authLogged bool
}

// New creates a Reporter that logs through the given component logger.
func New(log zerolog.Logger) *Reporter {
	return &Reporter{log: rxComponent(log)}
}

func rxComponent(log zerolog.Logger) zerolog.Logger {
	return log.With().Str("component", "diagnostics").Logger()
}

// Report classifies a raw server/transport error string and logs the
// matching diagnostic. It returns the extracted topic (if any) so callers
// can attach it to a returned *Error, and whether the error was recognized
// as one of the three diagnostic categories.
func (r *Reporter) Report(errText string) (topic string, recognized bool) {
	if strings.Contains(errText, "permissions violation") {
		topic = subjectFromViolation(errText)
		action := "subscribe"
		label := "Subscription"
		if strings.Contains(errText, "publish") {
			action = "publish"
			label = "Publish"
		}
		r.logGrid("Permissions Violation", [][2]string{
			{"Event", fmt.Sprintf("%s Permissions Violation", label)},
			{"Description", fmt.Sprintf("User is not permitted to %s on %q", action, topic)},
			{"Topic", topic},
			{"Raw", errText},
		})
		return topic, true
	}

	if strings.Contains(errText, "Authorization Violation") {
		if !r.authLogged {
			r.logGrid("Authentication Failure", [][2]string{
				{"Event", "Authentication Failure"},
				{"Description", "User failed to authenticate. Check if the API key exists and is enabled"},
				{"Raw", errText},
			})
			r.authLogged = true
		}
		return "", true
	}

	return "", false
}

// ReportQuota logs the billing diagnostic for JetStream error code 10077.
func (r *Reporter) ReportQuota() {
	r.logGrid("Message Limit Exceeded", [][2]string{
		{"Event", "Message Limit Exceeded"},
		{"Description", "Current message count for account exceeds plan-defined limits. Upgrade plan to remove limits"},
		{"Link", "https://console.relay-x.io/billing"},
	})
}

func (r *Reporter) logGrid(title string, rows [][2]string) {
	r.log.Warn().Str("diagnostic", title).Str("table", renderGrid(rows)).Msg(title)
}

func renderGrid(rows [][2]string) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "Type\tData\n")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	w.Flush()
	return b.String()
}
