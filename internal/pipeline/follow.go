package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pale-fire/logdoctor/internal/correlate"
	"github.com/pale-fire/logdoctor/internal/engine"
	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/source"
)

const (
	followFlushEvery = 2 * time.Second
	followFlushMax   = 256
)

// Batch is one follow-mode flush: the events appended since the previous
// batch and the groups that closed or changed with them.
type Batch struct {
	RunID  string
	Events []model.Event
	Groups []model.Group
}

// Stream is a running follow-mode analysis. Consumers range over Batches
// until it closes, then read Err and Run.
type Stream struct {
	batches chan Batch
	err     error
	run     *model.Run
}

// Batches delivers flushed batches. The channel closes when the stream
// ends, by cancellation or because every origin ended.
func (s *Stream) Batches() <-chan Batch { return s.batches }

// Err reports the failure that ended the stream early. Valid once Batches
// has closed.
func (s *Stream) Err() error { return s.err }

// Run returns the finalized run, nil when the stream failed before
// finalizing. Valid once Batches has closed.
func (s *Stream) Run() *model.Run { return s.run }

// Follow starts a streaming analysis: file targets tail, container and http
// targets keep polling. Events append to one streaming run in flushed
// batches until ctx is cancelled or every origin ends.
func (p *Pipeline) Follow(ctx context.Context, targets []string, opts Options) (*Stream, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("pipeline: no targets given")
	}
	in := p.openAll(ctx, targets, opts, true)
	if len(in.active) == 0 {
		return nil, fmt.Errorf("pipeline: no origins available to follow")
	}
	merged := source.Merge(ctx, in.chans, p.cfg.Source.MergeLookback, p.cfg.Source.MergeHorizon)

	st := &Stream{batches: make(chan Batch, 1)}
	go p.follow(ctx, merged, in, opts, st)
	return st, nil
}

func (p *Pipeline) follow(ctx context.Context, merged <-chan model.RawLine, in *inputs, opts Options, st *Stream) {
	defer close(st.batches)

	started := time.Now().UTC()
	engines := make(map[string]*engine.Engine)
	corr := correlate.New(p.correlatorConfig(), p.log)
	groupsByID := make(map[string]model.Group)

	flushEvery := opts.FlushInterval
	if flushEvery <= 0 {
		flushEvery = followFlushEvery
	}

	var (
		runID   string
		all     []model.Event
		pending []model.Event
		timer   *time.Timer
		flushC  <-chan time.Time
	)

	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			flushC = nil
		}
	}

	// flush persists the pending events together with every group that
	// closed or changed since the previous flush. Open groups are re-sent
	// as snapshots; the store replaces them by id.
	flush := func(final bool) error {
		disarm()
		var groups []model.Group
		if final {
			groups = corr.Flush()
		} else {
			groups = append(corr.Drain(), corr.Snapshot()...)
		}
		correlate.Sort(groups)
		for _, g := range groups {
			groupsByID[g.ID] = g
		}
		if len(pending) == 0 && len(groups) == 0 {
			return nil
		}

		events := pending
		pending = nil
		sort.Slice(events, func(i, j int) bool { return events[i].Before(&events[j]) })
		all = append(all, events...)

		if runID == "" {
			run := &model.Run{
				ID:        uuid.NewString(),
				CreatedAt: started,
				Events:    events,
				Groups:    groups,
				Append:    true,
			}
			if err := p.store.SaveRun(run); err != nil {
				return err
			}
			runID = run.ID
			p.log.Info().Str("run", runID).Msg("streaming run started")
		} else if err := p.store.AppendEvents(runID, events, groups); err != nil {
			return err
		}

		select {
		case st.batches <- Batch{RunID: runID, Events: events, Groups: groups}:
		case <-ctx.Done():
		}
		return nil
	}

	// drainParsers force-completes each origin's pending fold candidate so
	// flushed output never trails the live stream by one line.
	drainParsers := func() {
		for _, id := range in.order {
			if eng := engines[id]; eng != nil {
				if out, ok := eng.Flush(); ok && opts.keep(&out.Event) {
					pending = append(pending, out.Event)
					if out.Detection.IsError {
						corr.Observe(out.Event, out.Detection.Signature)
					}
				}
			}
		}
	}

	ingest := func(line model.RawLine) error {
		in.countLine(line.Origin)
		eng, err := p.engineFor(engines, line.Origin)
		if err != nil {
			return err
		}
		if timer == nil {
			timer = time.NewTimer(flushEvery)
			flushC = timer.C
		}
		out, ok := eng.Feed(line)
		if !ok || !opts.keep(&out.Event) {
			return nil
		}
		pending = append(pending, out.Event)
		if out.Detection.IsError {
			corr.Observe(out.Event, out.Detection.Signature)
		}
		if len(pending) >= followFlushMax {
			return flush(false)
		}
		return nil
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-flushC:
			drainParsers()
			if err := flush(false); err != nil {
				st.err = err
				return
			}
		case line, ok := <-merged:
			if !ok {
				break loop
			}
			if err := ingest(line); err != nil {
				st.err = err
				return
			}
		}
	}

	drainParsers()
	in.harvestErrors()
	if err := flush(true); err != nil {
		st.err = err
		return
	}

	statuses := in.statuses()
	groups := make([]model.Group, 0, len(groupsByID))
	for _, g := range groupsByID {
		groups = append(groups, g)
	}
	correlate.Sort(groups)

	run := &model.Run{
		ID:        runID,
		CreatedAt: started,
		Origins:   statuses,
		Events:    all,
		Groups:    groups,
		Counters:  counters(all, groups, engines, statuses),
		Summary:   engine.Summarize(all),
		Failed:    len(all) == 0 && erroredOrigins(statuses) > 0,
	}
	switch {
	case runID == "":
		run.ID = uuid.NewString()
		if err := p.store.SaveRun(run); err != nil {
			st.err = err
			return
		}
	default:
		if err := p.store.FinalizeRun(run); err != nil {
			st.err = err
			return
		}
	}
	st.run = run
	p.log.Info().
		Str("run", run.ID).
		Int("events", run.Counters.TotalEvents).
		Int("groups", run.Counters.GroupCount).
		Msg("streaming run finalized")
}
