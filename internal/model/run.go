package model

import "time"

// Counters summarizes one analysis run.
type Counters struct {
	TotalEvents    int `json:"total_events"`
	ErrorCount     int `json:"error_count"`
	WarnCount      int `json:"warn_count"`
	GroupCount     int `json:"group_count"`
	UnparsedLines  int `json:"unparsed_lines"`  // fell through to the raw-text recognizer
	DegradedLines  int `json:"degraded_lines"`  // unknown severity tokens, bad timestamps
	SkippedOrigins int `json:"skipped_origins"` // origins that failed to open or died mid-stream
}

// HotSpot is a service ranked by its error volume.
type HotSpot struct {
	Service    string `json:"service"`
	ErrorCount int    `json:"error_count"`
}

// Spike marks a minute whose error count exceeded three times the per-minute
// mean for the run.
type Spike struct {
	Minute time.Time `json:"minute"`
	Count  int       `json:"count"`
	Mean   float64   `json:"mean"`
}

// Summary carries the derived statistics reported alongside a run.
type Summary struct {
	ByLevel   map[string]int `json:"by_level"`
	ByService map[string]int `json:"by_service"`
	ErrorRate float64        `json:"error_rate"` // percent of events at ERROR or above
	HotSpots  []HotSpot      `json:"hot_spots,omitempty"`
	Spikes    []Spike        `json:"spikes,omitempty"`
}

// OriginStatus records the outcome of reading one origin.
type OriginStatus struct {
	Origin string `json:"origin"`
	Lines  int    `json:"lines"`
	Err    string `json:"error,omitempty"` // non-empty when the origin failed or died mid-stream
}

// Run is one complete analyze invocation: its events, groups, and summary,
// addressable by id from later commands. Immutable after finalize except for
// the explicit streaming append path in the store.
type Run struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Origins   []OriginStatus `json:"origins"`
	Events    []Event        `json:"events"`
	Groups    []Group        `json:"groups"`
	Counters  Counters       `json:"counters"`
	Summary   Summary        `json:"summary"`
	Partial   bool           `json:"partial,omitempty"` // cancelled before all origins drained
	Failed    bool           `json:"failed,omitempty"`  // produced no events and at least one origin errored
	Append    bool           `json:"append,omitempty"`  // streaming run, still receiving events
}

// EventByID returns the event with the given event or error id, or nil.
// Error ids resolve to their first (representative) occurrence.
func (r *Run) EventByID(id string) *Event {
	for i := range r.Events {
		if r.Events[i].ID == id || r.Events[i].ErrorID == id {
			return &r.Events[i]
		}
	}
	return nil
}

// GroupByID returns the group with the given id, or nil.
func (r *Run) GroupByID(id string) *Group {
	for i := range r.Groups {
		if r.Groups[i].ID == id {
			return &r.Groups[i]
		}
	}
	return nil
}
