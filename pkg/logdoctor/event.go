package logdoctor

import (
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
)

// Event is a parsed, normalized log event. This is the stable public type;
// internal representations may evolve independently without breaking
// consumers.
type Event struct {
	ID         string            `json:"id"`                    // evt_<12 hex>, stable across re-runs
	ErrorID    string            `json:"error_id,omitempty"`    // err_<12 hex>, set for warnings and errors
	Origin     string            `json:"origin"`                // source the line came from
	Service    string            `json:"service"`               // service name, origin unless overridden
	Timestamp  time.Time         `json:"timestamp"`             // normalized to UTC
	TimeApprox bool              `json:"time_approx,omitempty"` // arrival time substituted for a missing timestamp
	Severity   string            `json:"severity"`              // TRACE, DEBUG, INFO, WARN, ERROR, FATAL
	Message    string            `json:"message"`               // may span lines after continuation merge
	Fields     map[string]string `json:"fields,omitempty"`      // structured fields from the recognizer
}

func eventFromModel(ev model.Event) Event {
	return Event{
		ID:         ev.ID,
		ErrorID:    ev.ErrorID,
		Origin:     ev.Origin,
		Service:    ev.Service,
		Timestamp:  ev.Timestamp,
		TimeApprox: ev.TimeApprox,
		Severity:   ev.Severity.String(),
		Message:    ev.Message,
		Fields:     ev.Fields,
	}
}
