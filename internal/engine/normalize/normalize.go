// Package normalize canonicalizes parsed candidates into immutable events:
// one timezone, one severity scale, one identity scheme.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/engine/parser"
	"github.com/pale-fire/logdoctor/internal/model"
)

// Normalizer turns parser results into model.Events. Not safe for
// concurrent use; the pipeline runs one per analysis.
type Normalizer struct {
	loc       *time.Location
	overrides map[string]model.Severity
	log       zerolog.Logger

	unknownLevels int
	approxTimes   int
}

// New builds a Normalizer. loc is applied to zone-naive timestamps; nil
// means UTC. overrides maps extra severity tokens to canonical level names
// and rejects values that are not canonical levels themselves.
func New(loc *time.Location, overrides map[string]string, log zerolog.Logger) (*Normalizer, error) {
	if loc == nil {
		loc = time.UTC
	}
	n := &Normalizer{loc: loc, log: log}
	if len(overrides) > 0 {
		n.overrides = make(map[string]model.Severity, len(overrides))
		for token, name := range overrides {
			sev, ok := model.ParseSeverity(name)
			if !ok {
				return nil, fmt.Errorf("normalize: severity override %q maps to unknown level %q", token, name)
			}
			n.overrides[strings.ToLower(token)] = sev
		}
	}
	return n, nil
}

// Normalize produces the canonical event for one parser result. It never
// fails: missing timestamps fall back to arrival time and unknown severity
// tokens degrade to INFO.
func (n *Normalizer) Normalize(res parser.Result) model.Event {
	line, cand := res.Line, res.Cand

	service := cand.Service
	if service == "" {
		service = line.Service
	}
	if service == "" {
		service = "unknown"
	}

	ev := model.Event{
		ID:       model.EventID(line.Origin, line.Seq, line.Text),
		Origin:   line.Origin,
		Service:  service,
		Severity: n.severity(cand.Level),
		Message:  cand.Message,
		Fields:   cand.Fields,
		Parser:   cand.Parser,
		Seq:      line.Seq,
	}
	ev.Timestamp, ev.TimeApprox = n.timestamp(cand, line.Arrival)
	if ev.TimeApprox {
		n.approxTimes++
	}
	return ev
}

func (n *Normalizer) severity(token string) model.Severity {
	if token == "" {
		return model.SeverityInfo
	}
	if sev, ok := n.overrides[strings.ToLower(token)]; ok {
		return sev
	}
	if sev, ok := model.ParseSeverity(token); ok {
		return sev
	}
	n.unknownLevels++
	n.log.Debug().Str("token", token).Msg("unknown severity token, defaulting to INFO")
	return model.SeverityInfo
}

func (n *Normalizer) timestamp(cand parser.Candidate, arrival time.Time) (time.Time, bool) {
	if cand.Timestamp.IsZero() {
		return arrival.UTC(), true
	}
	t := cand.Timestamp
	if !cand.Zoned {
		// Reinterpret the parsed wall clock in the configured zone.
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.loc)
	}
	return t.UTC(), false
}

// UnknownLevels reports how many severity tokens failed to map.
func (n *Normalizer) UnknownLevels() int { return n.unknownLevels }

// ApproxTimes reports how many events carry arrival-time fallbacks.
func (n *Normalizer) ApproxTimes() int { return n.approxTimes }
