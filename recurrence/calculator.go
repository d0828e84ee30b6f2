package recurrence

import (
	"sort"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// MaxCandidates bounds how many iterator candidates the generic path looks at
// before giving up. A rule whose constraints never produce a date after the
// anchor (or that has run out of COUNT) ends the series instead of looping.
const MaxCandidates = 10

// Occurrence is one computed due date of a series.
type Occurrence struct {
	Time time.Time
	// HasTime is false for date-only occurrences, which sit at midnight.
	HasTime bool
}

// Calculator computes the next occurrence of a rule. All calendar arithmetic
// happens in a single location so wall-clock times survive DST changes.
type Calculator struct {
	loc *time.Location
}

// NewCalculator creates a calculator working in loc (time.Local when nil)
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{loc: loc}
}

// Location returns the zone the calculator works in
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Next returns the first occurrence of rule after anchor, or mo.None when the
// series is exhausted.
func (c *Calculator) Next(anchor time.Time, hasTime bool, rule Rule) mo.Option[Occurrence] {
	anchor = anchor.In(c.loc)

	switch {
	case rule.IsSubDay():
		return mo.Some(c.nextSubDay(anchor, rule))
	case rule.Freq == Weekly && len(rule.ByDay) > 0 && rule.Anchor == FromCompletionDate:
		return mo.Some(c.nextWeekdayAfterCompletion(anchor, hasTime, rule))
	case rule.Freq == Monthly && len(rule.ByDay) == 0 && isEndOfMonth(anchor):
		return mo.Some(c.nextEndOfMonth(anchor, hasTime, rule))
	default:
		return c.iterate(anchor, hasTime, rule)
	}
}

// nextSubDay is plain addition; the wall clock is allowed to drift across DST.
func (c *Calculator) nextSubDay(anchor time.Time, rule Rule) Occurrence {
	unit := time.Minute
	if rule.Freq == Hourly {
		unit = time.Hour
	}
	return Occurrence{
		Time:    anchor.Add(time.Duration(rule.Interval) * unit),
		HasTime: true,
	}
}

// nextWeekdayAfterCompletion skips interval-1 whole weeks and then moves to
// the next weekday of the BYDAY set, wrapping into the following week.
func (c *Calculator) nextWeekdayAfterCompletion(anchor time.Time, hasTime bool, rule Rule) Occurrence {
	date := anchor.AddDate(0, 0, 7*(rule.Interval-1))

	days := append([]time.Weekday(nil), rule.ByDay...)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	target := days[0]
	for _, day := range days {
		if day > date.Weekday() {
			target = day
			break
		}
	}

	// always moves at least one day, so a lone BYDAY equal to the anchor's
	// weekday lands a week later
	for {
		date = date.AddDate(0, 0, 1)
		if date.Weekday() == target {
			break
		}
	}
	return c.occurrence(date, anchor, hasTime)
}

// nextEndOfMonth keeps a last-day-of-month series pinned to the last day.
func (c *Calculator) nextEndOfMonth(anchor time.Time, hasTime bool, rule Rule) Occurrence {
	y, m, _ := anchor.Date()
	// day 0 of the month after the target month is the target's last day
	last := time.Date(y, m+time.Month(rule.Interval)+1, 0,
		anchor.Hour(), anchor.Minute(), anchor.Second(), 0, c.loc)
	return c.occurrence(last, anchor, hasTime)
}

// iterate runs the generic RRULE iterator seeded at the anchor value.
func (c *Calculator) iterate(anchor time.Time, hasTime bool, rule Rule) mo.Option[Occurrence] {
	start := anchor.Truncate(time.Second)
	if !hasTime {
		start = midnight(anchor, c.loc)
	}

	opt := rrule.ROption{
		Freq:     rruleFrequency(rule.Freq),
		Interval: rule.Interval,
		Dtstart:  start,
	}
	if count, ok := rule.Count.Get(); ok {
		opt.Count = count
	}
	if rule.Freq == Weekly {
		for _, day := range rule.ByDay {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return mo.None[Occurrence]()
	}

	next := r.Iterator()
	for i := 0; i < MaxCandidates; i++ {
		candidate, ok := next()
		if !ok {
			return mo.None[Occurrence]()
		}
		if candidate.Equal(start) {
			continue
		}
		occ := c.occurrence(candidate, anchor, hasTime)
		if occ.Time.After(anchor) {
			return mo.Some(occ)
		}
	}
	return mo.None[Occurrence]()
}

// occurrence builds the result for a computed date: midnight for date-only
// series, otherwise the anchor's hour and minute on that date.
func (c *Calculator) occurrence(date time.Time, anchor time.Time, hasTime bool) Occurrence {
	date = date.In(c.loc)
	if !hasTime {
		return Occurrence{Time: midnight(date, c.loc)}
	}
	y, m, d := date.Date()
	return Occurrence{
		Time:    time.Date(y, m, d, anchor.Hour(), anchor.Minute(), date.Second(), 0, c.loc),
		HasTime: true,
	}
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func isEndOfMonth(t time.Time) bool {
	y, m, d := t.Date()
	return d == time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

func rruleFrequency(f Frequency) rrule.Frequency {
	switch f {
	case Minutely:
		return rrule.MINUTELY
	case Hourly:
		return rrule.HOURLY
	case Daily:
		return rrule.DAILY
	case Weekly:
		return rrule.WEEKLY
	case Monthly:
		return rrule.MONTHLY
	default:
		return rrule.YEARLY
	}
}
