// Package timeline computes bounded, ordered views over an event set.
// Every call recomputes from the events it is given; there is no cross-call
// state, so views stay correct when a run is re-loaded or appended to.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
)

// Options filter the event set before the window is applied, so windows
// count only matching events instead of being diluted by filtered-out ones.
type Options struct {
	MinSeverity model.Severity
	Origin      string // exact origin name, "" matches all
	Service     string // exact service name, "" matches all
	Limit       int    // cap on returned events, most recent kept; 0 is unlimited
}

func (o Options) match(ev *model.Event) bool {
	if ev.Severity < o.MinSeverity {
		return false
	}
	if o.Origin != "" && ev.Origin != o.Origin {
		return false
	}
	if o.Service != "" && ev.Service != o.Service {
		return false
	}
	return true
}

// CacheKey renders the options as a stable string, combined with the window
// spec's key by callers that cache per query.
func (o Options) CacheKey() string {
	return fmt.Sprintf("sev=%d:origin=%s:service=%s:limit=%d", o.MinSeverity, o.Origin, o.Service, o.Limit)
}

// Build returns the events inside the window, filtered by opts and ordered
// by timestamp, then sequence, then origin. Input order does not matter.
func Build(events []model.Event, spec model.WindowSpec, opts Options) ([]model.Event, error) {
	matched := make([]model.Event, 0, len(events))
	for i := range events {
		if opts.match(&events[i]) {
			matched = append(matched, events[i])
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Before(&matched[j]) })

	var (
		out []model.Event
		err error
	)
	switch spec.Kind {
	case model.WindowTrailing:
		out = trailing(matched, spec.Trailing)
	case model.WindowAbsolute:
		out = absolute(matched, spec.Start, spec.End)
	case model.WindowFocal:
		out, err = focal(matched, spec)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("timeline: unknown window kind %d", spec.Kind)
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out, nil
}

// trailing keeps events within d of the last matching event. The boundary
// is inclusive: an event exactly d before the end stays in.
func trailing(events []model.Event, d time.Duration) []model.Event {
	if len(events) == 0 {
		return nil
	}
	cut := events[len(events)-1].Timestamp.Add(-d)
	i := sort.Search(len(events), func(i int) bool {
		return !events[i].Timestamp.Before(cut)
	})
	return events[i:]
}

// absolute keeps events with start <= ts <= end. A zero bound is open.
func absolute(events []model.Event, start, end time.Time) []model.Event {
	lo := 0
	if !start.IsZero() {
		lo = sort.Search(len(events), func(i int) bool {
			return !events[i].Timestamp.Before(start)
		})
	}
	hi := len(events)
	if !end.IsZero() {
		hi = lo + sort.Search(len(events)-lo, func(i int) bool {
			return events[lo+i].Timestamp.After(end)
		})
	}
	return events[lo:hi]
}

// focal returns spec.Before matching events preceding the focal event and
// spec.After following it. The focal event is excluded: callers asking for
// the lead-up to an error already hold the error. FocalID may be an event
// id or an error id; an error id resolves to its first occurrence.
func focal(events []model.Event, spec model.WindowSpec) ([]model.Event, error) {
	at := -1
	for i := range events {
		if events[i].ID == spec.FocalID || events[i].ErrorID == spec.FocalID {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, fmt.Errorf("timeline: focal event %q not found", spec.FocalID)
	}

	lo := at - spec.Before
	if lo < 0 {
		lo = 0
	}
	hi := at + 1 + spec.After
	if hi > len(events) {
		hi = len(events)
	}

	out := make([]model.Event, 0, hi-lo-1)
	out = append(out, events[lo:at]...)
	out = append(out, events[at+1:hi]...)
	return out, nil
}
