package logdoctor

import (
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/timeline"
)

// Window bounds and filters a timeline query. Build one with Last, Between,
// or Around, then narrow it with the chainable filter methods.
type Window struct {
	spec model.WindowSpec
	opts timeline.Options
}

// Last keeps events from the trailing duration of the run.
func Last(d time.Duration) Window {
	return Window{spec: model.TrailingWindow(d)}
}

// Between keeps events between start and end inclusive.
func Between(start, end time.Time) Window {
	return Window{spec: model.AbsoluteWindow(start, end)}
}

// Around keeps before events preceding the focal event and after events
// following it. id may be an event id or an error id; error ids resolve to
// their first occurrence. The focal event itself is not part of the view.
func Around(id string, before, after int) Window {
	return Window{spec: model.FocalWindow(id, before, after)}
}

// Service narrows the window to events from one service.
func (w Window) Service(name string) Window {
	w.opts.Service = name
	return w
}

// Origin narrows the window to events from one origin.
func (w Window) Origin(name string) Window {
	w.opts.Origin = name
	return w
}

// MinLevel drops events below the given severity. Unknown names are
// ignored.
func (w Window) MinLevel(level string) Window {
	if sev, ok := model.ParseSeverity(level); ok {
		w.opts.MinSeverity = sev
	}
	return w
}

// Limit caps the number of returned events, keeping the most recent.
func (w Window) Limit(n int) Window {
	w.opts.Limit = n
	return w
}
