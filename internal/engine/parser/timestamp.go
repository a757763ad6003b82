package parser

import (
	"regexp"
	"strings"
	"time"
)

// Timestamp shapes recognized inside free-form text, tried in order.
var (
	isoRe    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)
	spacedRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:[.,]\d+)?`)
	clfRe    = regexp.MustCompile(`\d{2}/[A-Za-z]{3}/\d{4}:\d{2}:\d{2}:\d{2}(?: [+-]\d{4})?`)
	syslogRe = regexp.MustCompile(`[A-Z][a-z]{2} {1,2}\d{1,2} \d{2}:\d{2}:\d{2}`)

	zoneSuffixRe = regexp.MustCompile(`(?:Z|[+-]\d{2}:?\d{2})$`)
)

var (
	isoZonedLayouts = []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05.999999999-0700",
		"2006-01-02T15:04:05-0700",
	}
	isoNaiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}
	spacedLayouts = []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
)

// extractTime finds the first recognizable timestamp in text. zoned reports
// whether the timestamp carried an explicit offset; naive results are parsed
// as UTC wall-clock and reinterpreted by the normalizer. match is the exact
// substring consumed, so callers can strip it from the message.
func extractTime(text string, arrival time.Time) (ts time.Time, zoned bool, match string, ok bool) {
	if m := isoRe.FindString(text); m != "" {
		s := strings.Replace(m, ",", ".", 1)
		if zoneSuffixRe.MatchString(s) {
			if t, ok := tryLayouts(isoZonedLayouts, s); ok {
				return t, true, m, true
			}
		}
		if t, ok := tryLayouts(isoNaiveLayouts, s); ok {
			return t, false, m, true
		}
	}
	if m := spacedRe.FindString(text); m != "" {
		s := strings.Replace(m, ",", ".", 1)
		if t, ok := tryLayouts(spacedLayouts, s); ok {
			return t, false, m, true
		}
	}
	if m := clfRe.FindString(text); m != "" {
		if t, err := time.Parse("02/Jan/2006:15:04:05 -0700", m); err == nil {
			return t, true, m, true
		}
		if t, err := time.Parse("02/Jan/2006:15:04:05", m); err == nil {
			return t, false, m, true
		}
	}
	if m := syslogRe.FindString(text); m != "" {
		if t, err := time.Parse("Jan _2 15:04:05", m); err == nil {
			// Year-less format: borrow the year from arrival time.
			t = t.AddDate(arrival.Year(), 0, 0)
			return t, false, m, true
		}
	}
	return time.Time{}, false, "", false
}

func tryLayouts(layouts []string, s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
