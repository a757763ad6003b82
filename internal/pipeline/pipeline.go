// Package pipeline drives one analysis: resolve targets into sources, merge
// their lines, run per-origin engines, correlate errors, and persist the
// result. Batch runs save once at the end; follow mode appends flushed
// batches to a streaming run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/config"
	"github.com/pale-fire/logdoctor/internal/correlate"
	"github.com/pale-fire/logdoctor/internal/engine"
	"github.com/pale-fire/logdoctor/internal/engine/detect"
	"github.com/pale-fire/logdoctor/internal/engine/normalize"
	"github.com/pale-fire/logdoctor/internal/engine/parser"
	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/source"
	"github.com/pale-fire/logdoctor/internal/store"
)

// Options scope one analyze invocation.
type Options struct {
	// Service overrides the service attributed to every origin.
	Service string
	// Token authenticates http origins.
	Token string
	// MinSeverity drops events below the given level before correlation.
	MinSeverity model.Severity
	// Since and Until bound event timestamps; zero values leave the bound open.
	Since time.Time
	Until time.Time
	// FlushInterval is the follow-mode flush cadence; zero means the default.
	FlushInterval time.Duration
}

func (o Options) keep(ev *model.Event) bool {
	if ev.Severity < o.MinSeverity {
		return false
	}
	if !o.Since.IsZero() && ev.Timestamp.Before(o.Since) {
		return false
	}
	if !o.Until.IsZero() && ev.Timestamp.After(o.Until) {
		return false
	}
	return true
}

// Pipeline wires sources through per-origin engines and the correlator into
// the store. One Pipeline serves many runs; every run gets fresh stage state.
type Pipeline struct {
	cfg      config.Config
	patterns []config.LinePattern
	rules    []config.CrossServiceRule
	store    *store.Store
	log      zerolog.Logger
}

// New builds a Pipeline. Malformed rule and pattern files are logged and
// skipped; the built-in recognizers and the generic cross-service fallback
// take over.
func New(cfg config.Config, st *store.Store, log zerolog.Logger) *Pipeline {
	p := &Pipeline{cfg: cfg, store: st, log: log}
	if cfg.Parse.PatternsFile != "" {
		patterns, err := config.LoadPatterns(cfg.Parse.PatternsFile)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.Parse.PatternsFile).
				Msg("custom line patterns unavailable")
		} else {
			p.patterns = patterns
		}
	}
	if cfg.Correlation.RulesFile != "" {
		rules, err := config.LoadRules(cfg.Correlation.RulesFile)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.Correlation.RulesFile).
				Msg("cross-service rules unavailable, using generic fallback")
		} else {
			p.rules = rules
		}
	}
	return p
}

// Run executes one batch analysis over the given targets and saves the
// result. Origin failures are isolated: a target that cannot be read is
// recorded on the run, not fatal. Cancellation saves what was collected so
// far with Partial set.
func (p *Pipeline) Run(ctx context.Context, targets []string, opts Options) (*model.Run, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("pipeline: no targets given")
	}

	in := p.openAll(ctx, targets, opts, false)
	merged := source.Merge(ctx, in.chans, p.cfg.Source.MergeLookback, p.cfg.Source.MergeHorizon)

	engines := make(map[string]*engine.Engine)
	var outs []engine.Output
	for line := range merged {
		in.countLine(line.Origin)
		eng, err := p.engineFor(engines, line.Origin)
		if err != nil {
			return nil, err
		}
		if out, ok := eng.Feed(line); ok && opts.keep(&out.Event) {
			outs = append(outs, out)
		}
	}
	for _, id := range in.order {
		if eng := engines[id]; eng != nil {
			if out, ok := eng.Flush(); ok && opts.keep(&out.Event) {
				outs = append(outs, out)
			}
		}
	}
	partial := ctx.Err() != nil
	in.harvestErrors()

	sort.Slice(outs, func(i, j int) bool { return outs[i].Event.Before(&outs[j].Event) })

	corr := correlate.New(p.correlatorConfig(), p.log)
	events := make([]model.Event, len(outs))
	for i := range outs {
		events[i] = outs[i].Event
		if outs[i].Detection.IsError {
			corr.Observe(outs[i].Event, outs[i].Detection.Signature)
		}
	}
	groups := corr.Flush()
	correlate.Sort(groups)

	statuses := in.statuses()
	run := &model.Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Origins:   statuses,
		Events:    events,
		Groups:    groups,
		Counters:  counters(events, groups, engines, statuses),
		Summary:   engine.Summarize(events),
		Partial:   partial,
		Failed:    len(events) == 0 && erroredOrigins(statuses) > 0,
	}
	if err := p.store.SaveRun(run); err != nil {
		return nil, err
	}
	p.log.Info().
		Str("run", run.ID).
		Int("events", run.Counters.TotalEvents).
		Int("errors", run.Counters.ErrorCount).
		Int("groups", run.Counters.GroupCount).
		Bool("partial", run.Partial).
		Msg("run saved")
	return run, nil
}

// engineFor returns the engine owning an origin's parse state, creating it
// on first sight. Parser state is per origin so continuation folding never
// crosses interleaved streams.
func (p *Pipeline) engineFor(engines map[string]*engine.Engine, origin string) (*engine.Engine, error) {
	if eng, ok := engines[origin]; ok {
		return eng, nil
	}
	eng, err := p.newEngine()
	if err != nil {
		return nil, err
	}
	engines[origin] = eng
	return eng, nil
}

func (p *Pipeline) newEngine() (*engine.Engine, error) {
	norm, err := normalize.New(p.cfg.Location(), p.cfg.Parse.SeverityOverrides, p.log)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	par := parser.New(p.patterns, p.cfg.Parse.MaxContinuationLines, p.log)
	return engine.New(par, norm, detect.New()), nil
}

func (p *Pipeline) correlatorConfig() correlate.Config {
	return correlate.Config{
		Window:               p.cfg.Correlation.Window,
		Similarity:           p.cfg.Correlation.Similarity,
		CrossServiceFallback: p.cfg.Correlation.CrossServiceFallback,
		Rules:                p.rules,
	}
}

func (p *Pipeline) sourceOptions(opts Options, follow bool) source.Options {
	return source.Options{
		Service:       opts.Service,
		Follow:        follow,
		DirGlobs:      p.cfg.Source.DirGlobs,
		PollInterval:  p.cfg.Source.PollInterval,
		HTTPTimeout:   p.cfg.Source.HTTPTimeout,
		DockerTimeout: p.cfg.Source.DockerTimeout,
		Token:         opts.Token,
		Log:           p.log,
	}
}

// inputs tracks the opened sources of one run and the per-origin outcome.
type inputs struct {
	order  []string
	states map[string]*model.OriginStatus
	active []source.Source
	chans  []<-chan model.RawLine
}

// openAll resolves every target and starts its line channels. A target or
// source that fails to open becomes a skipped origin on the run.
func (p *Pipeline) openAll(ctx context.Context, targets []string, opts Options, follow bool) *inputs {
	in := &inputs{states: make(map[string]*model.OriginStatus)}
	srcOpts := p.sourceOptions(opts, follow)

	for _, target := range targets {
		srcs, err := source.Resolve(target, srcOpts)
		if err != nil {
			p.log.Warn().Err(err).Str("target", target).Msg("origin skipped")
			in.fail(target, err)
			continue
		}
		for _, s := range srcs {
			o := s.Describe()
			ch, err := s.Lines(ctx)
			if err != nil {
				p.log.Warn().Err(err).Str("origin", o.ID).Msg("origin skipped")
				in.fail(o.ID, err)
				continue
			}
			in.state(o.ID)
			in.active = append(in.active, s)
			in.chans = append(in.chans, ch)
		}
	}
	return in
}

// state returns the status record for an origin, creating it in arrival
// order. Distinct targets that resolve to the same origin id share one
// record.
func (in *inputs) state(id string) *model.OriginStatus {
	if st, ok := in.states[id]; ok {
		return st
	}
	st := &model.OriginStatus{Origin: id}
	in.states[id] = st
	in.order = append(in.order, id)
	return st
}

func (in *inputs) fail(id string, err error) {
	st := in.state(id)
	if st.Err == "" {
		st.Err = err.Error()
	}
}

func (in *inputs) countLine(origin string) {
	in.state(origin).Lines++
}

// harvestErrors collects mid-stream failures once every channel has closed.
func (in *inputs) harvestErrors() {
	for _, s := range in.active {
		if err := s.Err(); err != nil {
			in.fail(s.Describe().ID, err)
		}
	}
}

func (in *inputs) statuses() []model.OriginStatus {
	out := make([]model.OriginStatus, 0, len(in.order))
	for _, id := range in.order {
		out = append(out, *in.states[id])
	}
	return out
}

func counters(events []model.Event, groups []model.Group, engines map[string]*engine.Engine, statuses []model.OriginStatus) model.Counters {
	c := model.Counters{
		TotalEvents:    len(events),
		GroupCount:     len(groups),
		SkippedOrigins: erroredOrigins(statuses),
	}
	for i := range events {
		switch {
		case events[i].Severity >= model.SeverityError:
			c.ErrorCount++
		case events[i].Severity == model.SeverityWarn:
			c.WarnCount++
		}
	}
	for _, eng := range engines {
		stats := eng.Stats()
		c.UnparsedLines += stats.UnparsedLines
		c.DegradedLines += stats.UnknownLevels + stats.ApproxTimes
	}
	return c
}

func erroredOrigins(statuses []model.OriginStatus) int {
	n := 0
	for i := range statuses {
		if statuses[i].Err != "" {
			n++
		}
	}
	return n
}
