package logdoctor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/config"
	"github.com/pale-fire/logdoctor/internal/logging"
	"github.com/pale-fire/logdoctor/internal/pipeline"
	"github.com/pale-fire/logdoctor/internal/store"
)

// LogDoctor analyzes log origins and answers queries against the runs it
// has stored. Safe for concurrent reads; Analyze calls are serialized by
// the result store's writer.
type LogDoctor struct {
	cfg   config.Config
	store *store.Store
	pipe  *pipeline.Pipeline
	log   zerolog.Logger
}

// New creates a LogDoctor instance, loading configuration and opening the
// result store. Opening the store migrates its schema on first use, so
// create once and reuse across analyses.
func New(opts ...Option) (*LogDoctor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}
	if o.storePath != "" {
		cfg.Store.Path = o.storePath
	}
	if o.window > 0 {
		cfg.Correlation.Window = o.window
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}

	log := logging.New(cfg.Log.Level)
	if o.log != nil {
		log = *o.log
	}

	st, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}

	return &LogDoctor{
		cfg:   cfg,
		store: st,
		pipe:  pipeline.New(cfg, st, log),
		log:   log,
	}, nil
}

// Analyze reads every origin to completion, correlates the errors it finds,
// and persists the result. Origins are resolved the same way the command
// line resolves its targets: file paths, directories, "-" for stdin,
// http(s) URLs, and docker:<container> references.
func (d *LogDoctor) Analyze(ctx context.Context, origins ...string) (*Run, error) {
	run, err := d.pipe.Run(ctx, origins, pipeline.Options{})
	if err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}
	return runFromModel(run), nil
}

// GetEvent looks up a stored event by event id or error id, searching the
// most recent runs first.
func (d *LogDoctor) GetEvent(id string) (*Event, error) {
	ev, _, err := d.store.FindEvent(id)
	if err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}
	pub := eventFromModel(*ev)
	return &pub, nil
}

// GetGroup looks up a stored correlation group by id.
func (d *LogDoctor) GetGroup(id string) (*Group, error) {
	g, _, err := d.store.FindGroup(id)
	if err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}
	pub := groupFromModel(*g)
	return &pub, nil
}

// GetTimeline returns the events of a stored run inside the given window,
// ordered by time.
func (d *LogDoctor) GetTimeline(runID string, w Window) ([]Event, error) {
	events, err := d.store.GetTimeline(runID, w.spec, w.opts)
	if err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}
	out := make([]Event, len(events))
	for i, ev := range events {
		out[i] = eventFromModel(ev)
	}
	return out, nil
}

// GetRun reloads a stored run with its events and groups.
func (d *LogDoctor) GetRun(id string) (*Run, error) {
	run, err := d.store.LoadRun(id)
	if err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}
	return runFromModel(run), nil
}

// Runs lists stored runs, newest first, without their events. limit <= 0
// returns all.
func (d *LogDoctor) Runs(limit int) ([]Run, error) {
	runs, err := d.store.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("logdoctor: %w", err)
	}
	out := make([]Run, len(runs))
	for i := range runs {
		out[i] = *runFromModel(&runs[i])
	}
	return out, nil
}

// Close releases the result store.
func (d *LogDoctor) Close() error {
	return d.store.Close()
}
