package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/pale-fire/logdoctor/internal/engine/detect"
	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/output"
	"github.com/pale-fire/logdoctor/internal/semantic"
	"github.com/pale-fire/logdoctor/internal/store"
)

func newErrorsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List and inspect detected errors",
	}
	cmd.AddCommand(newErrorsListCmd(root), newErrorsShowCmd(root))
	return cmd
}

func newErrorsListCmd(root *rootOptions) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a run's unique errors by occurrence count",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()

			if runID == "" {
				if runID, err = a.latestRun(); err != nil {
					return err
				}
			}
			run, err := a.st.LoadRun(runID)
			if err != nil {
				return err
			}
			return a.out.Errors(output.AggregateErrors(run.Events))
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id (default: newest run)")
	return cmd
}

func newErrorsShowCmd(root *rootOptions) *cobra.Command {
	var similar bool
	var matches int
	cmd := &cobra.Command{
		Use:   "show <event-or-error-id>",
		Short: "Show one error in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()

			ev, runID, err := a.st.FindEvent(args[0])
			if err != nil {
				return err
			}
			g, err := a.st.FindGroupOfEvent(runID, ev.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err := a.out.Event(ev, g); err != nil {
				return err
			}
			if !similar {
				return nil
			}
			return showSimilar(a, ev, matches)
		},
	}
	cmd.Flags().BoolVar(&similar, "similar", false, "also list semantically similar past errors")
	cmd.Flags().IntVar(&matches, "matches", 5, "similar errors to list")
	return cmd
}

// showSimilar ranks the store's cached signature vectors against this
// event's signature. The cache is written by analyze, so errors from any
// stored run can match.
func showSimilar(a *app, ev *model.Event, k int) error {
	if !a.cfg.Semantic.Enabled {
		return a.out.Text("semantic search is disabled in config")
	}
	emb, err := semantic.Open(a.cfg.Semantic.ModelDir)
	if errors.Is(err, semantic.ErrUnavailable) {
		return a.out.Text("semantic search unavailable: no model files under " + a.cfg.Semantic.ModelDir)
	}
	if err != nil {
		return err
	}
	defer emb.Close()

	vectors, err := a.st.Vectors()
	if err != nil {
		return err
	}
	entries := make([]semantic.Entry, len(vectors))
	for i, v := range vectors {
		entries[i] = semantic.Entry{ErrorID: v.ErrorID, Service: v.Service, Signature: v.Signature, Vector: v.Values}
	}

	sig := detect.New().Classify(ev).Signature
	vec, err := emb.Embed(sig)
	if err != nil {
		return err
	}
	found := semantic.NewIndex(entries).Search(vec, k, ev.ErrorID)
	return a.out.Similar(found)
}
