// Package output renders analysis artifacts: human-readable text or NDJSON
// for machine consumption. Renderers hold no state beyond their writer, so
// one instance serves a whole command.
package output

import (
	"io"
	"sort"
	"time"

	"github.com/pale-fire/logdoctor/internal/engine/detect"
	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/semantic"
)

// Renderer writes each artifact kind a command can produce.
type Renderer interface {
	// Run renders a complete analysis run.
	Run(run *model.Run) error
	// Events renders a timeline view or a streaming batch.
	Events(events []model.Event) error
	// Event renders one event in detail with its group, if any.
	Event(ev *model.Event, g *model.Group) error
	// Errors renders aggregated unique errors.
	Errors(list []ErrorSummary) error
	// Similar renders semantic search matches.
	Similar(matches []semantic.Match) error
	// Runs renders stored run metadata.
	Runs(runs []model.Run) error
	// Sources renders saved source descriptors.
	Sources(list []Source) error
	// Text passes through pre-rendered text such as explanations.
	Text(s string) error
}

// New picks the renderer for the requested format.
func New(w io.Writer, asJSON bool) Renderer {
	if asJSON {
		return NewNDJSON(w)
	}
	return NewText(w)
}

// ErrorSummary aggregates every occurrence of one error id.
type ErrorSummary struct {
	ErrorID   string         `json:"error_id"`
	Service   string         `json:"service"`
	Severity  model.Severity `json:"severity"`
	Category  string         `json:"category"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
	Message   string         `json:"message"` // first occurrence's message
}

// Source is a saved source descriptor shaped for rendering.
type Source struct {
	Name    string    `json:"name"`
	Scheme  string    `json:"scheme"`
	Target  string    `json:"target"`
	Service string    `json:"service,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// AggregateErrors folds events into unique-error summaries, ordered by
// occurrence count, most frequent first. Events without an error id are
// skipped.
func AggregateErrors(events []model.Event) []ErrorSummary {
	byID := make(map[string]*ErrorSummary)
	order := make([]string, 0)
	for i := range events {
		ev := &events[i]
		if ev.ErrorID == "" {
			continue
		}
		s, ok := byID[ev.ErrorID]
		if !ok {
			s = &ErrorSummary{
				ErrorID:   ev.ErrorID,
				Service:   ev.Service,
				Severity:  ev.Severity,
				Category:  detect.Categorize(ev.Message),
				FirstSeen: ev.Timestamp,
				LastSeen:  ev.Timestamp,
				Message:   ev.Message,
			}
			byID[ev.ErrorID] = s
			order = append(order, ev.ErrorID)
		}
		s.Count++
		if ev.Timestamp.Before(s.FirstSeen) {
			s.FirstSeen = ev.Timestamp
			s.Message = ev.Message
		}
		if ev.Timestamp.After(s.LastSeen) {
			s.LastSeen = ev.Timestamp
		}
	}

	out := make([]ErrorSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ErrorID < out[j].ErrorID
	})
	return out
}
