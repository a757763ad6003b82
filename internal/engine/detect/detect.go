// Package detect classifies normalized events for correlation: which events
// are error occurrences, what their signature template is, and which rough
// category they belong to.
package detect

import (
	"regexp"

	"github.com/pale-fire/logdoctor/internal/model"
)

// Detection is the classification of one event.
type Detection struct {
	// IsError is true for severity ERROR and FATAL; such events are
	// correlation candidates.
	IsError bool
	// IsWarning is true for severity WARN.
	IsWarning bool
	// Signature is the placeholder template, set for severity >= WARN.
	Signature string
	// Category is a coarse bucket used by summaries, set with Signature.
	Category string
}

// categoryPatterns map message shapes to coarse buckets, checked in order.
var categoryPatterns = []struct {
	re       *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`(?i)timeout|timed out`), "timeout"},
	{regexp.MustCompile(`(?i)connection refused|connection reset|broken pipe|no route to host`), "connection"},
	{regexp.MustCompile(`(?i)out of memory|oom|memory`), "memory"},
	{regexp.MustCompile(`(?i)permission denied|access denied|unauthorized|forbidden`), "permission"},
	{regexp.MustCompile(`(?i)not found|404|missing|no such file`), "not_found"},
	{regexp.MustCompile(`(?i)null pointer|nullptr|nil pointer|undefined`), "null_reference"},
}

// Detector classifies events and stamps error identities.
type Detector struct{}

// New returns a Detector.
func New() *Detector {
	return &Detector{}
}

// Classify inspects ev and, for severity >= WARN, computes its signature
// and sets ev.ErrorID so that every occurrence of the same error shape in
// the same service shares one id across runs.
func (d *Detector) Classify(ev *model.Event) Detection {
	det := Detection{
		IsError:   ev.Severity >= model.SeverityError,
		IsWarning: ev.Severity == model.SeverityWarn,
	}
	if ev.Severity < model.SeverityWarn {
		return det
	}
	det.Signature = Signature(ev.Message)
	det.Category = Categorize(ev.Message)
	ev.ErrorID = model.ErrorID(ev.Service, det.Signature, ev.Severity)
	return det
}

// Categorize buckets a message into one of the coarse categories used by
// run summaries, or "other".
func Categorize(message string) string {
	for _, p := range categoryPatterns {
		if p.re.MatchString(message) {
			return p.category
		}
	}
	return "other"
}
