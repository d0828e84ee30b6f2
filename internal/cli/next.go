package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librepeat/recurrence"
)

func newNextCmd() *cobra.Command {
	var (
		due       string
		completed string
		count     int
	)

	cmd := &cobra.Command{
		Use:   "next RULE",
		Short: "Print the next occurrences of a rule",
		Long: `Computes the occurrences following a due date without touching the
database. With ;FROM=COMPLETION in the rule the first occurrence is computed
from --completed (default now).`,
		Example: `  librepeat next "FREQ=MONTHLY;INTERVAL=1" --due 2017-01-31 -n 3
  librepeat next "FREQ=WEEKLY;BYDAY=MO,WE;FROM=COMPLETION" --due "2016-08-29 00:25" --completed "2016-08-28 01:09"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			rc, err := e.cfg.RecurrenceConfig()
			if err != nil {
				return err
			}
			engine := recurrence.NewEngineWithConfig(rc)

			rule, err := engine.Parse(args[0])
			if err != nil {
				return err
			}
			dueAt, hasTime, err := parseWhen(due, e.loc)
			if err != nil {
				return err
			}
			doneAt, _, err := parseWhen(completed, e.loc)
			if err != nil {
				return err
			}

			anchor := dueAt
			if rule.Anchor == recurrence.FromCompletionDate {
				anchor = doneAt
			}
			if anchor.IsZero() {
				anchor = time.Now().In(e.loc)
			}
			if hasTime && !rule.IsSubDay() {
				y, m, d := anchor.Date()
				anchor = time.Date(y, m, d, dueAt.Hour(), dueAt.Minute(), dueAt.Second(), 0, e.loc)
			}

			for i := 0; i < count; i++ {
				left, bounded := rule.Count.Get()
				if bounded && left == 1 {
					fmt.Fprintln(e.out, "series ended by count")
					return nil
				}
				occ, ok := engine.Next(anchor, hasTime, rule)
				if !ok {
					fmt.Fprintln(e.out, "series exhausted")
					return nil
				}
				fmt.Fprintln(e.out, formatWhen(occ.Time, occ.HasTime, e.loc))

				if bounded {
					rule = rule.WithCount(left - 1)
				}
				anchor, hasTime = occ.Time, occ.HasTime
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or YYYY-MM-DD HH:MM")
	cmd.Flags().StringVar(&completed, "completed", "", "completion date for completion-anchored rules")
	cmd.Flags().IntVarP(&count, "number", "n", 1, "how many occurrences to print")
	return cmd
}
