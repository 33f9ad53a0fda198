// Package subject validates and matches NATS-style subjects.
//
// Grounded in _examples/original_source/relayx_py/queue.py (is_topic_valid,
// __topic_pattern_matcher): the queue generation's grammar is the more
// permissive of the two found in the Python source and is the one spec.md
// adopts as canonical for subscriptions.
package subject

import (
	"regexp"
	"strings"
)

// Reserved names a user may never register as a topic (spec.md §3 invariants).
const (
	Connected    = "CONNECTED"
	Disconnected = "DISCONNECTED"
	Reconnect    = "RECONNECT"
	Reconnected  = "RECONNECTED"
	Reconnecting = "RECONNECTING"
	ReconnFail   = "RECONN_FAIL"
	MessageResend = "MESSAGE_RESEND"
)

var reserved = map[string]bool{
	Connected:     true,
	Disconnected:  true,
	Reconnect:     true,
	Reconnected:   true,
	Reconnecting:  true,
	ReconnFail:    true,
	MessageResend: true,
}

// topicRegex matches the grammar:
//
//	subject := token ('.' token)* ('.>')? | '>'
//	token   := [A-Za-z0-9_*~-]+
//
// and forbids '$' anywhere, mirroring queue.py's TOPIC_REGEX.
var topicRegex = regexp.MustCompile(`^(?:[A-Za-z0-9_*~-]+(?:\.[A-Za-z0-9_*~-]+)*(?:\.>)?|>)$`)

// IsReserved reports whether topic is one of the reserved lifecycle names.
func IsReserved(topic string) bool {
	return reserved[topic]
}

// IsValidForSubscription reports whether topic is a syntactically valid
// subscription pattern. Wildcards ('*', '>') are permitted; reserved
// lifecycle names and anything containing '$' or whitespace are not.
func IsValidForSubscription(topic string) bool {
	if topic == "" || reserved[topic] {
		return false
	}
	if strings.ContainsAny(topic, " \t\n\r$") {
		return false
	}
	return topicRegex.MatchString(topic)
}

// IsValidForPublish reports whether topic is a valid concrete publish
// target: syntactically valid and free of '*'/'>' wildcard tokens.
func IsValidForPublish(topic string) bool {
	if !IsValidForSubscription(topic) {
		return false
	}
	for _, tok := range strings.Split(topic, ".") {
		if tok == "*" || tok == ">" {
			return false
		}
	}
	return true
}

// Matches reports whether two subject patterns (either or both may carry
// wildcards) could both match some common concrete subject. Ported from
// queue.py's __topic_pattern_matcher: literal tokens must agree, '*' on
// either side consumes exactly one token of the other, and '>' on either
// side (must be the final token of its own pattern) consumes one or more
// trailing tokens of the other, backtracking over the last '>' seen.
func Matches(patternA, patternB string) bool {
	a := strings.Split(patternA, ".")
	b := strings.Split(patternB, ".")

	i, j := 0, 0
	starAI, starAJ := -1, -1
	starBJ, starBI := -1, -1

	for i < len(a) || j < len(b) {
		var tokA, tokB string
		hasA, hasB := i < len(a), j < len(b)
		if hasA {
			tokA = a[i]
		}
		if hasB {
			tokB = b[j]
		}

		singleWildcard := (hasA && tokA == "*" && hasB) || (hasB && tokB == "*" && hasA)

		if (hasA && hasB && tokA == tokB) || singleWildcard {
			i++
			j++
			continue
		}

		if hasA && tokA == ">" {
			if i != len(a)-1 || j >= len(b) {
				return false
			}
			starAI = i
			i++
			starAJ = j + 1
			j++
			continue
		}

		if hasB && tokB == ">" {
			if j != len(b)-1 || i >= len(a) {
				return false
			}
			starBJ = j
			j++
			starBI = i + 1
			i++
			continue
		}

		if starAI != -1 {
			j = starAJ
			starAJ++
			continue
		}

		if starBJ != -1 {
			i = starBI
			starBI++
			continue
		}

		return false
	}

	return true
}

// StripHash removes a leading "{hash}." prefix from a wire subject,
// recovering the user-facing topic. Mirrors queue.py's __strip_stream_hash.
func StripHash(hash, wireSubject string) string {
	prefix := hash + "."
	return strings.TrimPrefix(wireSubject, prefix)
}

// WireTopic builds the on-wire subject "{hash}.{topic}" (spec.md §3 WireTopic).
func WireTopic(hash, topic string) string {
	return hash + "." + topic
}

// PresenceVariant builds the companion presence subject for a wire topic.
func PresenceVariant(wireTopic string) string {
	return wireTopic + "_presence"
}
