package cli

import (
	"github.com/spf13/cobra"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List and inspect stored runs",
	}
	cmd.AddCommand(newRunsListCmd(root), newRunsShowCmd(root))
	return cmd
}

func newRunsListCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()

			runs, err := a.st.ListRuns(limit)
			if err != nil {
				return err
			}
			return a.out.Runs(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "runs to list, 0 for all")
	return cmd
}

func newRunsShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run's summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()

			run, err := a.st.LoadRun(args[0])
			if err != nil {
				return err
			}
			return a.out.Run(run)
		},
	}
}
