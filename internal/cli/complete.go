package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/cyp0633/librepeat/alarm"
	"github.com/cyp0633/librepeat/calsync"
	"github.com/cyp0633/librepeat/notify"
	"github.com/cyp0633/librepeat/repeater"
	"github.com/cyp0633/librepeat/task"
)

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete ID",
		Short: "Complete a task, moving a recurring one to its next occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return e.complete(cmd.Context(), task.ID(args[0]))
		},
	}
}

func (e *env) complete(ctx context.Context, id task.ID) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := e.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rc, err := e.cfg.RecurrenceConfig()
	if err != nil {
		return err
	}

	// a nil *Syncer must not end up in the interface
	var cal repeater.CalendarSync
	syncer, err := e.syncer()
	if err != nil {
		return err
	}
	if syncer != nil {
		cal = syncer
	}

	alarmOpts := []alarm.Option{alarm.WithLocation(e.loc), alarm.WithLogger(e.logger)}
	if h := e.cfg.Alarms.ReminderHour; h != nil {
		alarmOpts = append(alarmOpts, alarm.WithReminderHour(*h))
	}
	alarms := alarm.New(nil, alarmOpts...)

	events := notify.New(notify.WithLogger(e.logger))
	sub, cancel := events.Subscribe(4)
	defer cancel()

	ctrl, err := repeater.New(store, cal, alarms, events,
		repeater.WithConfig(rc),
		repeater.WithLogger(e.logger))
	if err != nil {
		return err
	}
	svc := repeater.NewService(store, ctrl, repeater.WithServiceLogger(e.logger))

	res, err := svc.Complete(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "%s: %s\n", id, res.Outcome)
	if res.Outcome == repeater.Advanced {
		fmt.Fprintf(e.out, "next due %s\n", formatWhen(res.Task.DueDate, res.Task.HasDueTime, e.loc))
		if at, ok := alarms.Pending(id); ok {
			fmt.Fprintf(e.out, "reminder at %s\n", formatWhen(at, true, e.loc))
		}
	}

drain:
	for {
		select {
		case ev := <-sub:
			e.logger.Debug("change event", "kind", ev.Kind, "task_id", ev.TaskID)
		default:
			break drain
		}
	}

	if res.SyncErr != nil {
		fmt.Fprintf(e.out, "warning: calendar not updated: %v\n", res.SyncErr)
	}
	return completionError(res)
}

// completionError is the command's exit error. A calendar failure only warns
// because the advanced task has been stored anyway.
func completionError(res repeater.Result) error {
	return errors.Join(res.Err, res.StoreErr)
}

// syncer builds the calendar syncer from config, nil when no calendar is set
func (e *env) syncer() (*calsync.Syncer, error) {
	cc := e.cfg.Calendar
	if cc.URL == "" {
		return nil, nil
	}

	opts := []calsync.DAVOption{calsync.WithDAVLogger(e.logger)}
	if cc.Username != "" {
		opts = append(opts, calsync.WithCredentials(cc.Username, cc.Password))
	}
	if cc.RequestsPerSecond > 0 {
		opts = append(opts, calsync.WithRateLimit(rate.Limit(cc.RequestsPerSecond), 1))
	}
	dav, err := calsync.NewDAVCalendar(cc.URL, opts...)
	if err != nil {
		return nil, err
	}

	return calsync.NewSyncer(dav,
		calsync.WithLocation(e.loc),
		calsync.WithEndAtDeadline(cc.EndAtDeadline),
		calsync.WithDefaultDuration(e.cfg.DefaultDuration()),
		calsync.WithLogger(e.logger)), nil
}
