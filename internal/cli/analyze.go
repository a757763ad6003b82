package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pale-fire/logdoctor/internal/engine/detect"
	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/pipeline"
	"github.com/pale-fire/logdoctor/internal/semantic"
	"github.com/pale-fire/logdoctor/internal/store"
)

type analyzeOptions struct {
	docker  []string
	service string
	level   string
	since   string
	until   string
	token   string
	follow  bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [path|dir|url|-|name]...",
		Short: "Read origins, correlate their errors, and store the run",
		Long: `Analyze reads every given origin to completion, folds stack traces into
their parent events, groups errors that likely share a root cause, and
stores the result as a run. Origins are file paths, directories, http(s)
URLs, "-" for stdin, docker:<container> references, or the names of saved
sources. With --follow, file origins are tailed and the run grows until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, o, args)
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&o.docker, "docker", nil, "container id or name to read (repeatable)")
	f.StringVar(&o.service, "service", "", "service name applied to all origins")
	f.StringVar(&o.level, "level", "", "drop events below this severity")
	f.StringVar(&o.since, "since", "", `keep events at or after this time (RFC3339 or "2006-01-02 15:04:05")`)
	f.StringVar(&o.until, "until", "", "keep events at or before this time")
	f.StringVar(&o.token, "token", "", "bearer token for http origins")
	f.BoolVarP(&o.follow, "follow", "f", false, "keep reading and appending until interrupted")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, o *analyzeOptions, args []string) error {
	a, err := openApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.close()

	targets, service, err := expandTargets(a, args, o)
	if err != nil {
		return err
	}
	popts := pipeline.Options{Service: service, Token: o.token}
	if o.level != "" {
		sev, ok := model.ParseSeverity(o.level)
		if !ok {
			return fmt.Errorf("unknown severity %q", o.level)
		}
		popts.MinSeverity = sev
	}
	if popts.Since, err = parseTimeFlag(o.since); err != nil {
		return err
	}
	if popts.Until, err = parseTimeFlag(o.until); err != nil {
		return err
	}

	p := pipeline.New(a.cfg, a.st, a.log)
	if o.follow {
		return followAnalyze(cmd.Context(), a, p, targets, popts)
	}

	run, err := p.Run(cmd.Context(), targets, popts)
	if err != nil {
		return err
	}
	cacheVectors(a, run.Events)
	if err := a.out.Run(run); err != nil {
		return err
	}
	if run.Failed {
		return fmt.Errorf("analysis failed: no events and %d origin(s) errored", run.Counters.SkippedOrigins)
	}
	return nil
}

func followAnalyze(ctx context.Context, a *app, p *pipeline.Pipeline, targets []string, popts pipeline.Options) error {
	stream, err := p.Follow(ctx, targets, popts)
	if err != nil {
		return err
	}
	for batch := range stream.Batches() {
		if err := a.out.Events(batch.Events); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	run := stream.Run()
	if run == nil {
		return nil
	}
	cacheVectors(a, run.Events)
	return a.out.Run(run)
}

// expandTargets turns command arguments and --docker references into
// pipeline targets. Arguments that are not paths may name saved sources;
// a single saved source also contributes its service unless --service is
// given.
func expandTargets(a *app, args []string, o *analyzeOptions) ([]string, string, error) {
	targets := make([]string, 0, len(args)+len(o.docker))
	service := o.service
	for _, arg := range args {
		if _, err := os.Stat(arg); err == nil {
			targets = append(targets, arg)
			continue
		}
		if desc, err := a.st.GetSource(arg); err == nil {
			targets = append(targets, descriptorTarget(*desc))
			if service == "" && len(args) == 1 && len(o.docker) == 0 {
				service = desc.Service
			}
			continue
		}
		targets = append(targets, arg)
	}
	for _, id := range o.docker {
		targets = append(targets, "docker:"+id)
	}
	if len(targets) == 0 {
		return nil, "", fmt.Errorf("nothing to analyze: give a file, directory, url, -, or a saved source name")
	}
	return targets, service, nil
}

func descriptorTarget(desc store.SourceDescriptor) string {
	switch desc.Scheme {
	case "docker":
		return "docker:" + desc.Target
	case "stdin":
		return "-"
	default:
		return desc.Target
	}
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// cacheVectors embeds the run's unique error signatures into the store's
// vector cache so later similar-error searches start warm. Silently skipped
// when the model files are not installed.
func cacheVectors(a *app, events []model.Event) {
	if !a.cfg.Semantic.Enabled {
		return
	}
	reps := make(map[string]model.Event)
	var order []string
	for _, ev := range events {
		if ev.ErrorID == "" {
			continue
		}
		if _, ok := reps[ev.ErrorID]; ok {
			continue
		}
		reps[ev.ErrorID] = ev
		order = append(order, ev.ErrorID)
	}
	if len(order) == 0 {
		return
	}

	emb, err := semantic.Open(a.cfg.Semantic.ModelDir)
	if err != nil {
		if errors.Is(err, semantic.ErrUnavailable) {
			a.log.Debug().Msg("semantic model not installed, skipping vector cache")
		} else {
			a.log.Warn().Err(err).Msg("semantic embedder unavailable")
		}
		return
	}
	defer emb.Close()

	det := detect.New()
	texts := make([]string, len(order))
	for i, id := range order {
		ev := reps[id]
		texts[i] = det.Classify(&ev).Signature
	}
	vecs, err := emb.EmbedBatch(texts)
	if err != nil {
		a.log.Warn().Err(err).Msg("signature embedding failed")
		return
	}
	for i, id := range order {
		rep := reps[id]
		v := store.SignatureVector{ErrorID: id, Service: rep.Service, Signature: texts[i], Values: vecs[i]}
		if err := a.st.PutVector(v); err != nil {
			a.log.Warn().Err(err).Str("error_id", id).Msg("vector cache write failed")
		}
	}
}
