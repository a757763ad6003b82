package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pale-fire/logdoctor/internal/output"
	"github.com/pale-fire/logdoctor/internal/source"
	"github.com/pale-fire/logdoctor/internal/store"
)

func newSourcesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage saved log sources",
		Long: `Sources saves origin targets under short names, so "logdoctor analyze api"
can stand in for the full path or container reference.`,
	}
	cmd.AddCommand(newSourcesAddCmd(root), newSourcesListCmd(root), newSourcesRemoveCmd(root))
	return cmd
}

func newSourcesAddCmd(root *rootOptions) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "add <name> <target>",
		Short: "Save a source under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()

			scheme, target, err := source.Classify(args[1])
			if err != nil {
				return err
			}
			desc := store.SourceDescriptor{Name: args[0], Scheme: scheme, Target: target, Service: service}
			if err := a.st.AddSource(desc); err != nil {
				return err
			}
			return a.out.Text(fmt.Sprintf("saved source %q (%s)", desc.Name, desc.Scheme))
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "service name to apply when analyzing this source")
	return cmd
}

func newSourcesListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()

			descs, err := a.st.ListSources()
			if err != nil {
				return err
			}
			list := make([]output.Source, len(descs))
			for i, d := range descs {
				list[i] = output.Source{Name: d.Name, Scheme: d.Scheme, Target: d.Target, Service: d.Service, AddedAt: d.AddedAt}
			}
			return a.out.Sources(list)
		},
	}
}

func newSourcesRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a saved source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.st.RemoveSource(args[0]); err != nil {
				return err
			}
			return a.out.Text(fmt.Sprintf("removed source %q", args[0]))
		},
	}
}
