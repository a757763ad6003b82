// Package explain turns a stored error into a plain-English report. The
// default renderer is a deterministic template over the evidence; it never
// calls out anywhere, so identical evidence produces identical text.
package explain

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/store"
	"github.com/pale-fire/logdoctor/internal/timeline"
)

// Evidence bounds: how much surrounding timeline a report gets.
const (
	contextBefore = 8
	contextAfter  = 4
)

// EvidenceBundle is everything a report is rendered from: the focal error,
// its correlation group when it has one, and the bounded timeline around it.
type EvidenceBundle struct {
	Event    model.Event
	Group    *model.Group  // nil when the event was not grouped
	Timeline []model.Event // ordered, focal event excluded
	RunID    string
}

// Explainer renders a plain-English explanation of the evidence.
type Explainer interface {
	Explain(ctx context.Context, b EvidenceBundle) (string, error)
}

// Fixer renders actionable fix suggestions for the evidence.
type Fixer interface {
	SuggestFix(ctx context.Context, b EvidenceBundle) (string, error)
}

// Gather assembles the evidence bundle for an event or error id from the
// store: the focal event, the group that contains it, and the timeline
// around it.
func Gather(st *store.Store, id string) (EvidenceBundle, error) {
	ev, runID, err := st.FindEvent(id)
	if err != nil {
		return EvidenceBundle{}, fmt.Errorf("explain: %w", err)
	}

	view, err := st.GetTimeline(runID,
		model.FocalWindow(ev.ID, contextBefore, contextAfter), timeline.Options{})
	if err != nil {
		return EvidenceBundle{}, fmt.Errorf("explain: %w", err)
	}

	b := EvidenceBundle{Event: *ev, Timeline: view, RunID: runID}
	g, err := st.FindGroupOfEvent(runID, ev.ID)
	switch {
	case err == nil:
		b.Group = g
	case errors.Is(err, store.ErrNotFound):
	default:
		return EvidenceBundle{}, fmt.Errorf("explain: %w", err)
	}
	return b, nil
}

// fullView returns the timeline with the focal event spliced back in, in
// order, for incident analysis.
func (b *EvidenceBundle) fullView() []model.Event {
	out := make([]model.Event, 0, len(b.Timeline)+1)
	out = append(out, b.Timeline...)
	out = append(out, b.Event)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out
}
