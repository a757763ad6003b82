package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/timeline"
)

type timelineOptions struct {
	runID   string
	last    string
	errorID string
	before  int
	after   int
	service string
	origin  string
	filter  string
	limit   int
}

func newTimelineCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Inspect stored run timelines",
	}
	cmd.AddCommand(newTimelineShowCmd(root))
	return cmd
}

func newTimelineShowCmd(root *rootOptions) *cobra.Command {
	o := &timelineOptions{}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an ordered window of a run's events",
		Long: `Show renders the events of a stored run inside a window: a trailing
duration (--last 5m), or the context around one error (--error err_...
--before 3 --after 2). Without --run the newest run is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimelineShow(cmd, root, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.runID, "run", "", "run id (default: newest run)")
	f.StringVar(&o.last, "last", "", "trailing window like 30s, 5m, 1h, 2d (default 15m)")
	f.StringVar(&o.errorID, "error", "", "focal event or error id")
	f.IntVar(&o.before, "before", 5, "events before the focal event")
	f.IntVar(&o.after, "after", 5, "events after the focal event")
	f.StringVar(&o.service, "service", "", "only events from this service")
	f.StringVar(&o.origin, "origin", "", "only events from this origin")
	f.StringVar(&o.filter, "filter", "all", "errors, warnings, or all")
	f.IntVar(&o.limit, "limit", 0, "cap the number of events shown")
	return cmd
}

func runTimelineShow(cmd *cobra.Command, root *rootOptions, o *timelineOptions) error {
	spec, err := windowSpec(o)
	if err != nil {
		return err
	}
	topts, err := timelineFilter(o)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.close()

	runID := o.runID
	if runID == "" {
		if runID, err = a.latestRun(); err != nil {
			return err
		}
	}
	events, err := a.st.GetTimeline(runID, spec, topts)
	if err != nil {
		return err
	}
	return a.out.Events(events)
}

func windowSpec(o *timelineOptions) (model.WindowSpec, error) {
	if o.errorID != "" && o.last != "" {
		return model.WindowSpec{}, fmt.Errorf("use either --last or --error, not both")
	}
	if o.errorID != "" {
		return model.FocalWindow(o.errorID, o.before, o.after), nil
	}
	last := o.last
	if last == "" {
		last = "15m"
	}
	d, err := model.ParseTrailing(last)
	if err != nil {
		return model.WindowSpec{}, err
	}
	return model.TrailingWindow(d), nil
}

func timelineFilter(o *timelineOptions) (timeline.Options, error) {
	topts := timeline.Options{Service: o.service, Origin: o.origin, Limit: o.limit}
	switch o.filter {
	case "", "all":
	case "errors":
		topts.MinSeverity = model.SeverityError
	case "warnings":
		topts.MinSeverity = model.SeverityWarn
	default:
		return timeline.Options{}, fmt.Errorf("unknown filter %q: use errors, warnings, or all", o.filter)
	}
	return topts, nil
}
