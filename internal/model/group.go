package model

import "time"

// Group is a set of error events believed to share a root cause. It holds
// event ids rather than events: the run owns the events, the store maintains
// the id index.
type Group struct {
	ID         string    `json:"id"` // grp_<12 hex>
	Signature  string    `json:"signature"`
	EventIDs   []string  `json:"event_ids"` // ordered by event time
	Origins    []string  `json:"origins"`   // sorted, unique
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Confidence float64   `json:"confidence"` // [0,1], advisory only
	Closed     bool      `json:"closed"`
}

// Span returns the time covered by the group's members.
func (g *Group) Span() time.Duration {
	return g.End.Sub(g.Start)
}

// HasOrigin reports whether origin already contributed an event to g.
func (g *Group) HasOrigin(origin string) bool {
	for _, o := range g.Origins {
		if o == origin {
			return true
		}
	}
	return false
}
