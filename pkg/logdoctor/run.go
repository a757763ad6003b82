package logdoctor

import (
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
)

// Counters summarizes one analysis run.
type Counters struct {
	TotalEvents    int `json:"total_events"`
	ErrorCount     int `json:"error_count"`
	WarnCount      int `json:"warn_count"`
	GroupCount     int `json:"group_count"`
	UnparsedLines  int `json:"unparsed_lines"`
	DegradedLines  int `json:"degraded_lines"`
	SkippedOrigins int `json:"skipped_origins"`
}

// HotSpot is a service ranked by its error volume.
type HotSpot struct {
	Service    string `json:"service"`
	ErrorCount int    `json:"error_count"`
}

// Spike marks a minute whose error count exceeded three times the
// per-minute mean for the run.
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
	Error  string `json:"error,omitempty"` // non-empty when the origin failed or died mid-stream
}

// Run is one complete analysis: its events, groups, and summary,
// addressable by id from later queries.
type Run struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Origins   []OriginStatus `json:"origins"`
	Events    []Event        `json:"events"`
	Groups    []Group        `json:"groups"`
	Counters  Counters       `json:"counters"`
	Summary   Summary        `json:"summary"`
	Partial   bool           `json:"partial,omitempty"` // cancelled before all origins drained
	Failed    bool           `json:"failed,omitempty"`  // no events and at least one origin errored
}

func runFromModel(run *model.Run) *Run {
	out := &Run{
		ID:        run.ID,
		CreatedAt: run.CreatedAt,
		Counters:  Counters(run.Counters),
		Summary: Summary{
			ByLevel:   run.Summary.ByLevel,
			ByService: run.Summary.ByService,
			ErrorRate: run.Summary.ErrorRate,
		},
		Partial: run.Partial,
		Failed:  run.Failed,
	}
	for _, o := range run.Origins {
		out.Origins = append(out.Origins, OriginStatus{Origin: o.Origin, Lines: o.Lines, Error: o.Err})
	}
	for _, ev := range run.Events {
		out.Events = append(out.Events, eventFromModel(ev))
	}
	for _, g := range run.Groups {
		out.Groups = append(out.Groups, groupFromModel(g))
	}
	for _, h := range run.Summary.HotSpots {
		out.Summary.HotSpots = append(out.Summary.HotSpots, HotSpot(h))
	}
	for _, s := range run.Summary.Spikes {
		out.Summary.Spikes = append(out.Summary.Spikes, Spike(s))
	}
	return out
}
