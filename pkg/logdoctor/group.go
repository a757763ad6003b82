package logdoctor

import (
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
)

// Group is a set of error events believed to share a root cause. Members
// are referenced by event id; resolve them with GetEvent or GetTimeline.
type Group struct {
	ID         string    `json:"id"` // grp_<12 hex>
	Signature  string    `json:"signature"`
	EventIDs   []string  `json:"event_ids"` // ordered by event time
	Origins    []string  `json:"origins"`   // sorted, unique
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Confidence float64   `json:"confidence"` // [0,1], advisory only
	Closed     bool      `json:"closed"`     // false while a streaming run may still extend it
}

func groupFromModel(g model.Group) Group {
	return Group{
		ID:         g.ID,
		Signature:  g.Signature,
		EventIDs:   g.EventIDs,
		Origins:    g.Origins,
		Start:      g.Start,
		End:        g.End,
		Confidence: g.Confidence,
		Closed:     g.Closed,
	}
}
