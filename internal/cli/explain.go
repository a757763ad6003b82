package cli

import (
	"github.com/spf13/cobra"

	"github.com/pale-fire/logdoctor/internal/explain"
)

func newExplainCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <event-or-error-id>",
		Short: "Explain an error from its evidence",
		Long: `Explain gathers the error's occurrences, its correlation group, and the
surrounding timeline, then renders what is known about the failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, root, args[0], false)
		},
	}
}

func newSuggestFixCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest-fix <event-or-error-id>",
		Short: "Suggest likely fixes for an error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, root, args[0], true)
		},
	}
}

func runExplain(cmd *cobra.Command, root *rootOptions, id string, fix bool) error {
	a, err := openApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.close()

	bundle, err := explain.Gather(a.st, id)
	if err != nil {
		return err
	}
	r := explain.NewRenderer()
	var text string
	if fix {
		text, err = r.SuggestFix(cmd.Context(), bundle)
	} else {
		text, err = r.Explain(cmd.Context(), bundle)
	}
	if err != nil {
		return err
	}
	return a.out.Text(text)
}
