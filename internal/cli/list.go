package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librepeat/storage"
)

func newListCmd() *cobra.Command {
	var filter storage.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tasks, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDUE\tDONE\tRULE")
			for _, t := range tasks {
				rule := t.Recurrence
				if rule == "" {
					rule = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Title,
					formatWhen(t.DueDate, t.HasDueTime, e.loc),
					formatWhen(t.CompletionDate, true, e.loc),
					rule)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&filter.RecurringOnly, "recurring", false, "only tasks with a recurrence rule")
	cmd.Flags().BoolVar(&filter.CompletedOnly, "completed", false, "only completed tasks")
	return cmd
}
