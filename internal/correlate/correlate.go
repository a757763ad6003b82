// Package correlate groups error events that are likely manifestations of
// one root cause, within and across origins. Events must be observed in
// pipeline order (time, then sequence, then origin); group membership and
// ordering are then deterministic for identical input.
package correlate

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/config"
	"github.com/pale-fire/logdoctor/internal/model"
)

// Config controls grouping behavior.
type Config struct {
	// Window is how long a group stays open after its last member.
	Window time.Duration
	// Similarity is the minimum signature ratio for a fuzzy match.
	Similarity float64
	// CrossServiceFallback admits errors from other origins on temporal
	// proximity alone when no explicit rule covers the service pair.
	CrossServiceFallback bool
	// Rules are explicit cross-service associations.
	Rules []config.CrossServiceRule
}

const (
	baseConfidence  = 0.5
	sizeBonusCap    = 0.4
	fallbackPenalty = 0.15
	fuzzyPenalty    = 0.05
	minConfidence   = 0.05
	maxConfidence   = 0.99
)

// Correlator maintains the set of open groups for one run. Groups close
// lazily once the window elapses past their last member, and are forced
// closed by Flush at end of run. Not safe for concurrent use.
type Correlator struct {
	cfg Config
	log zerolog.Logger

	open   []*openGroup
	closed []model.Group
}

type openGroup struct {
	sig      string
	firstID  string
	eventIDs []string
	origins  map[string]bool
	services map[string]bool
	start    time.Time
	end      time.Time
	last     time.Time
	fuzzy    bool
	fallback bool
}

// New creates a Correlator.
func New(cfg Config, log zerolog.Logger) *Correlator {
	return &Correlator{cfg: cfg, log: log}
}

// Observe feeds one error event. Events below ERROR are ignored.
func (c *Correlator) Observe(ev model.Event, signature string) {
	if ev.Severity < model.SeverityError {
		return
	}
	c.closeExpired(ev.Timestamp)

	if g := c.matchSignature(signature, ev.Timestamp); g != nil {
		c.join(g, ev, g.sig != signature)
		return
	}
	if g := c.matchCrossService(ev); g != nil {
		g.fallback = g.fallback || !c.ruleCovers(g, ev.Service)
		c.join(g, ev, false)
		return
	}

	c.open = append(c.open, &openGroup{
		sig:      signature,
		firstID:  ev.ID,
		eventIDs: []string{ev.ID},
		origins:  map[string]bool{ev.Origin: true},
		services: map[string]bool{ev.Service: true},
		start:    ev.Timestamp,
		end:      ev.Timestamp,
		last:     ev.Timestamp,
	})
}

// matchSignature finds the first open group whose signature equals or is
// similar to sig and whose last member is within the window.
func (c *Correlator) matchSignature(sig string, t time.Time) *openGroup {
	var fuzzyBest *openGroup
	for _, g := range c.open {
		if t.Sub(g.last) > c.cfg.Window {
			continue
		}
		if g.sig == sig {
			return g
		}
		if fuzzyBest == nil && ratio(g.sig, sig) >= c.cfg.Similarity {
			fuzzyBest = g
		}
	}
	return fuzzyBest
}

// matchCrossService finds the open group with the most recent member within
// window whose services associate with ev's service via an explicit rule,
// or via the generic fallback when enabled. Ties go to the earlier group.
func (c *Correlator) matchCrossService(ev model.Event) *openGroup {
	var best *openGroup
	for _, g := range c.open {
		window := c.cfg.Window
		covered := c.ruleCovers(g, ev.Service)
		if covered {
			if w := c.ruleWindow(g, ev.Service); w > 0 {
				window = w
			}
		}
		if ev.Timestamp.Sub(g.last) > window {
			continue
		}
		if g.origins[ev.Origin] {
			continue
		}
		if !covered && !c.cfg.CrossServiceFallback {
			continue
		}
		if best == nil || g.last.After(best.last) {
			best = g
		}
	}
	return best
}

func (c *Correlator) ruleCovers(g *openGroup, service string) bool {
	for i := range c.cfg.Rules {
		for other := range g.services {
			if c.cfg.Rules[i].Matches(service, other) {
				return true
			}
		}
	}
	return false
}

func (c *Correlator) ruleWindow(g *openGroup, service string) time.Duration {
	for i := range c.cfg.Rules {
		for other := range g.services {
			if c.cfg.Rules[i].Matches(service, other) {
				return c.cfg.Rules[i].Window
			}
		}
	}
	return 0
}

func (c *Correlator) join(g *openGroup, ev model.Event, fuzzy bool) {
	g.eventIDs = append(g.eventIDs, ev.ID)
	g.origins[ev.Origin] = true
	g.services[ev.Service] = true
	g.fuzzy = g.fuzzy || fuzzy
	if ev.Timestamp.After(g.end) {
		g.end = ev.Timestamp
	}
	if ev.Timestamp.After(g.last) {
		g.last = ev.Timestamp
	}
}

// closeExpired closes every open group whose window has elapsed before now.
// Closing is a pure function of event time, never a background timer.
func (c *Correlator) closeExpired(now time.Time) {
	remaining := c.open[:0]
	for _, g := range c.open {
		if now.Sub(g.last) > c.cfg.Window {
			c.closed = append(c.closed, c.finalize(g))
			continue
		}
		remaining = append(remaining, g)
	}
	c.open = remaining
}

func (c *Correlator) finalize(g *openGroup) model.Group {
	grp := materialize(g, true)
	c.log.Debug().
		Str("group", grp.ID).
		Int("members", len(grp.EventIDs)).
		Float64("confidence", grp.Confidence).
		Msg("group closed")
	return grp
}

func materialize(g *openGroup, closed bool) model.Group {
	origins := make([]string, 0, len(g.origins))
	for o := range g.origins {
		origins = append(origins, o)
	}
	sort.Strings(origins)

	return model.Group{
		ID:         model.GroupID(g.sig, g.firstID),
		Signature:  g.sig,
		EventIDs:   append([]string(nil), g.eventIDs...),
		Origins:    origins,
		Start:      g.start,
		End:        g.end,
		Confidence: confidence(len(g.eventIDs), g.fuzzy, g.fallback),
		Closed:     closed,
	}
}

// Snapshot returns the current open groups, not closed, for streaming
// callers that persist in-progress correlation state. Later snapshots of
// the same group supersede earlier ones.
func (c *Correlator) Snapshot() []model.Group {
	out := make([]model.Group, 0, len(c.open))
	for _, g := range c.open {
		out = append(out, materialize(g, false))
	}
	return out
}

// confidence is advisory: it orders reporting but never gates membership.
func confidence(members int, fuzzy, fallback bool) float64 {
	score := baseConfidence
	bonus := 0.1 * math.Log2(float64(1+members))
	if bonus > sizeBonusCap {
		bonus = sizeBonusCap
	}
	score += bonus
	if fallback {
		score -= fallbackPenalty
	}
	if fuzzy {
		score -= fuzzyPenalty
	}
	if score < minConfidence {
		score = minConfidence
	}
	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}

// Drain returns groups closed since the last Drain, for streaming callers.
func (c *Correlator) Drain() []model.Group {
	out := c.closed
	c.closed = nil
	return out
}

// Flush force-closes all remaining open groups at end of run and returns
// every group closed since the last Drain.
func (c *Correlator) Flush() []model.Group {
	for _, g := range c.open {
		c.closed = append(c.closed, c.finalize(g))
	}
	c.open = nil
	return c.Drain()
}

// Sort orders groups for reporting: confidence descending, then start time,
// then id. Membership is unaffected.
func Sort(groups []model.Group) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Confidence != groups[j].Confidence {
			return groups[i].Confidence > groups[j].Confidence
		}
		if !groups[i].Start.Equal(groups[j].Start) {
			return groups[i].Start.Before(groups[j].Start)
		}
		return groups[i].ID < groups[j].ID
	})
}
