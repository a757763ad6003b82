package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// WindowKind selects how a timeline window is bounded.
type WindowKind int

const (
	// WindowTrailing keeps events within a duration of the run's end.
	WindowTrailing WindowKind = iota
	// WindowAbsolute keeps events between Start and End inclusive.
	WindowAbsolute
	// WindowFocal keeps Before events preceding the focal event and After
	// events following it. The focal event itself is not part of the view.
	WindowFocal
)

// WindowSpec describes the bounds of a timeline query.
type WindowSpec struct {
	Kind     WindowKind
	Trailing time.Duration // WindowTrailing
	Start    time.Time     // WindowAbsolute
	End      time.Time     // WindowAbsolute
	FocalID  string        // WindowFocal: event or error id
	Before   int           // WindowFocal
	After    int           // WindowFocal
}

// TrailingWindow builds a trailing-duration window spec.
func TrailingWindow(d time.Duration) WindowSpec {
	return WindowSpec{Kind: WindowTrailing, Trailing: d}
}

// AbsoluteWindow builds an absolute start/end window spec.
func AbsoluteWindow(start, end time.Time) WindowSpec {
	return WindowSpec{Kind: WindowAbsolute, Start: start, End: end}
}

// FocalWindow builds an "N before / M after the focal event" window spec.
func FocalWindow(focalID string, before, after int) WindowSpec {
	return WindowSpec{Kind: WindowFocal, FocalID: focalID, Before: before, After: after}
}

var durationRe = regexp.MustCompile(`^(\d+)\s*([smhd])$`)

// ParseTrailing parses short time-range strings like "5m", "1h", "2d" into
// a duration. Plain time.ParseDuration strings also work.
func ParseTrailing(s string) (time.Duration, error) {
	if m := durationRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "s":
			return time.Duration(n) * time.Second, nil
		case "m":
			return time.Duration(n) * time.Minute, nil
		case "h":
			return time.Duration(n) * time.Hour, nil
		case "d":
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	return 0, fmt.Errorf("model: cannot parse time range %q", s)
}

// CacheKey renders the window as a stable string for per-query caching.
func (w WindowSpec) CacheKey() string {
	switch w.Kind {
	case WindowAbsolute:
		return fmt.Sprintf("abs:%d:%d", w.Start.UnixNano(), w.End.UnixNano())
	case WindowFocal:
		return fmt.Sprintf("focal:%s:%d:%d", w.FocalID, w.Before, w.After)
	default:
		return fmt.Sprintf("trail:%d", w.Trailing.Nanoseconds())
	}
}
