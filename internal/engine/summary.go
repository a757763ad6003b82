package engine

import (
	"sort"
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
)

const (
	maxHotSpots     = 10
	spikeMultiplier = 3.0
)

// Summarize derives the run statistics from a finished event set: per-level
// and per-service counts, error rate, the services with the most errors,
// and minutes whose error volume spiked above three times the mean.
func Summarize(events []model.Event) model.Summary {
	s := model.Summary{
		ByLevel:   make(map[string]int),
		ByService: make(map[string]int),
	}
	if len(events) == 0 {
		return s
	}

	errorsByService := make(map[string]int)
	errorsByMinute := make(map[time.Time]int)
	errorTotal := 0

	for _, ev := range events {
		s.ByLevel[ev.Severity.String()]++
		s.ByService[ev.Service]++
		if ev.Severity >= model.SeverityError {
			errorTotal++
			errorsByService[ev.Service]++
			errorsByMinute[ev.Timestamp.Truncate(time.Minute)]++
		}
	}
	s.ErrorRate = float64(errorTotal) / float64(len(events)) * 100

	for service, count := range errorsByService {
		s.HotSpots = append(s.HotSpots, model.HotSpot{Service: service, ErrorCount: count})
	}
	sort.Slice(s.HotSpots, func(i, j int) bool {
		if s.HotSpots[i].ErrorCount != s.HotSpots[j].ErrorCount {
			return s.HotSpots[i].ErrorCount > s.HotSpots[j].ErrorCount
		}
		return s.HotSpots[i].Service < s.HotSpots[j].Service
	})
	if len(s.HotSpots) > maxHotSpots {
		s.HotSpots = s.HotSpots[:maxHotSpots]
	}

	if len(errorsByMinute) > 0 {
		mean := float64(errorTotal) / float64(len(errorsByMinute))
		for minute, count := range errorsByMinute {
			if float64(count) > mean*spikeMultiplier {
				s.Spikes = append(s.Spikes, model.Spike{Minute: minute, Count: count, Mean: mean})
			}
		}
		sort.Slice(s.Spikes, func(i, j int) bool { return s.Spikes[i].Minute.Before(s.Spikes[j].Minute) })
	}
	return s
}
