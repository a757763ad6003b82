package timeline

import (
	"sort"
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
)

// Incident summarizes a timeline for reporting: span, error load, and
// whether errors crossed service boundaries.
type Incident struct {
	Start        time.Time
	End          time.Time
	Duration     time.Duration
	Events       int
	Errors       int
	Services     []string // sorted, every service seen in the window
	FirstErrorID string   // id of the earliest ERROR-or-worse event
	Cascade      bool     // errors observed in more than one service
}

// Analyze summarizes an ordered timeline.
func Analyze(events []model.Event) Incident {
	inc := Incident{Events: len(events)}
	if len(events) == 0 {
		return inc
	}
	inc.Start = events[0].Timestamp
	inc.End = events[len(events)-1].Timestamp
	inc.Duration = inc.End.Sub(inc.Start)

	services := map[string]bool{}
	errServices := map[string]bool{}
	for i := range events {
		ev := &events[i]
		services[ev.Service] = true
		if ev.Severity < model.SeverityError {
			continue
		}
		inc.Errors++
		errServices[ev.Service] = true
		if inc.FirstErrorID == "" {
			inc.FirstErrorID = ev.ID
		}
	}

	inc.Services = make([]string, 0, len(services))
	for s := range services {
		inc.Services = append(inc.Services, s)
	}
	sort.Strings(inc.Services)
	inc.Cascade = len(errServices) > 1
	return inc
}
