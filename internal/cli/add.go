package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librepeat/recurrence"
	"github.com/cyp0633/librepeat/task"
)

func newAddCmd() *cobra.Command {
	var (
		due      string
		rule     string
		until    string
		notes    string
		estimate time.Duration
		link     string
	)

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Example: `  librepeat add "Water plants" --due 2016-08-26 --rule "FREQ=DAILY;INTERVAL=3"
  librepeat add "Stand-up" --due "2016-08-29 09:30" --rule "FREQ=WEEKLY;BYDAY=MO,WE" --link https://dav.example.com/cal/work/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			dueAt, hasTime, err := parseWhen(due, e.loc)
			if err != nil {
				return err
			}
			untilAt, _, err := parseWhen(until, e.loc)
			if err != nil {
				return err
			}
			if rule != "" {
				parsed, err := recurrence.Parse(rule)
				if err != nil {
					return err
				}
				rule = parsed.String()
			}

			now := time.Now().In(e.loc)
			t := task.Task{
				ID:                task.NewID(),
				Title:             args[0],
				Notes:             notes,
				DueDate:           task.NewDueDate(dueAt, hasTime, e.loc),
				HasDueTime:        hasTime,
				Recurrence:        rule,
				RepeatUntil:       untilAt,
				EstimatedDuration: estimate,
				Created:           now,
				Modified:          now,
			}

			if link != "" {
				syncer, err := e.syncer()
				if err != nil {
					return err
				}
				if syncer == nil {
					return fmt.Errorf("--link needs calendar.url in the config file")
				}
				if t, err = syncer.Link(cmd.Context(), t, link); err != nil {
					return err
				}
			}

			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Create(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintln(e.out, t.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or YYYY-MM-DD HH:MM")
	cmd.Flags().StringVar(&rule, "rule", "", "recurrence rule")
	cmd.Flags().StringVar(&until, "until", "", "last day the task may repeat on")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().DurationVar(&estimate, "estimate", 0, "estimated duration, used as calendar event length")
	cmd.Flags().StringVar(&link, "link", "", "CalDAV collection URL to create a linked event in")
	return cmd
}
