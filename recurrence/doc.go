/*
Package recurrence parses task recurrence rules and computes the next due date
of a series.

# Rule Text

Rules are stored as a semicolon separated RRULE subset with an optional
anchor marker appended:

	FREQ=WEEKLY;INTERVAL=2;COUNT=4;BYDAY=MO,WE;FROM=COMPLETION

FREQ is one of MINUTELY, HOURLY, DAILY, WEEKLY, MONTHLY, YEARLY. INTERVAL
defaults to 1. COUNT is the number of occurrences left including the current
one. BYDAY is only honoured for WEEKLY rules. FROM=COMPLETION anchors the
series on the completion date instead of the due date.

# Next Occurrence

	calc := recurrence.NewCalculator(time.Local)
	rule, err := recurrence.Parse(task.Recurrence)
	if err != nil {
		return err
	}
	occ, ok := calc.Next(task.DueDate, task.HasDueTime, rule).Get()
	if !ok {
		// series exhausted
	}

Minutely and hourly rules are plain duration arithmetic. Weekly BYDAY rules
anchored on completion jump interval-1 weeks and then to the next listed
weekday. Monthly rules anchored on a month's last day stay on the last day.
Everything else is expanded with an RRULE iterator, bounded by MaxCandidates,
and keeps the anchor's wall-clock time.
*/
package recurrence
