package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Event is a parsed, normalized log event. Immutable once the normalizer
// has produced it; owned by the run that produced it.
type Event struct {
	ID         string            `json:"id"`                    // evt_<12 hex>, content+position hash
	ErrorID    string            `json:"error_id,omitempty"`    // err_<12 hex>, set when Severity >= WARN
	Origin     string            `json:"origin"`                // source the line came from
	Service    string            `json:"service"`               // service name (origin unless overridden)
	Timestamp  time.Time         `json:"timestamp"`             // normalized to UTC
	TimeApprox bool              `json:"time_approx,omitempty"` // true when arrival time substituted
	Severity   Severity          `json:"severity"`
	Message    string            `json:"message"`           // may span lines after continuation merge
	Fields     map[string]string `json:"fields,omitempty"`  // structured fields from the recognizer
	Parser     string            `json:"parser"`            // recognizer that produced the event
	Seq        uint64            `json:"seq"`               // source sequence, ordering tie-break
}

// hash12 returns the first 12 hex characters of the sha256 of its input.
func hash12(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// EventID derives the stable event id from origin, position, and content.
// Re-parsing unchanged input yields the same id.
func EventID(origin string, seq uint64, text string) string {
	return "evt_" + hash12(origin, fmt.Sprintf("%d", seq), text)
}

// ErrorID derives the stable error id shared by all occurrences of the same
// kind of error: same service, same signature, same severity.
func ErrorID(service, signature string, sev Severity) string {
	return "err_" + hash12(service, signature, sev.String())
}

// GroupID derives a deterministic group id from the signature and the id of
// the group's first event.
func GroupID(signature, firstEventID string) string {
	return "grp_" + hash12(signature, firstEventID)
}

// Before reports whether e sorts ahead of other: by timestamp, then source
// sequence, then origin name. This is the ordering invariant used by the
// correlator and timeline builder.
func (e *Event) Before(other *Event) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.Before(other.Timestamp)
	}
	if e.Seq != other.Seq {
		return e.Seq < other.Seq
	}
	return e.Origin < other.Origin
}
