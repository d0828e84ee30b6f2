package recurrence

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string) Rule {
	t.Helper()
	rule, err := Parse(text)
	require.NoError(t, err)
	return rule
}

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func assertSameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func TestCalculator_Next(t *testing.T) {
	loc := time.UTC
	calc := NewCalculator(loc)

	tests := []struct {
		name     string
		anchor   time.Time
		hasTime  bool
		rule     string
		want     time.Time
		wantTime bool
	}{
		{
			name:     "minutely",
			anchor:   time.Date(2016, 8, 26, 12, 30, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=MINUTELY;INTERVAL=1",
			want:     time.Date(2016, 8, 26, 12, 31, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "hourly",
			anchor:   time.Date(2016, 8, 26, 12, 30, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=HOURLY;INTERVAL=1",
			want:     time.Date(2016, 8, 26, 13, 30, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "daily",
			anchor:   time.Date(2016, 8, 26, 12, 30, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=DAILY;INTERVAL=1",
			want:     time.Date(2016, 8, 27, 12, 30, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "weekly",
			anchor:   time.Date(2016, 8, 28, 1, 34, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=WEEKLY;INTERVAL=1",
			want:     time.Date(2016, 9, 4, 1, 34, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "monthly end of month",
			anchor:   time.Date(2017, 1, 31, 13, 30, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=MONTHLY;INTERVAL=1",
			want:     time.Date(2017, 2, 28, 13, 30, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "weekly by day from completion",
			anchor:   time.Date(2016, 8, 28, 0, 25, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;FROM=COMPLETION",
			want:     time.Date(2016, 8, 29, 0, 25, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "minutely crosses midnight",
			anchor:   time.Date(2016, 12, 31, 23, 45, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=MINUTELY;INTERVAL=30",
			want:     time.Date(2017, 1, 1, 0, 15, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "hourly from a date-only anchor has a time",
			anchor:   time.Date(2016, 8, 26, 0, 0, 0, 0, loc),
			hasTime:  false,
			rule:     "FREQ=HOURLY;INTERVAL=6",
			want:     time.Date(2016, 8, 26, 6, 0, 0, 0, loc),
			wantTime: true,
		},
		{
			name:    "daily date only",
			anchor:  time.Date(2016, 8, 26, 0, 0, 0, 0, loc),
			hasTime: false,
			rule:    "FREQ=DAILY;INTERVAL=3",
			want:    time.Date(2016, 8, 29, 0, 0, 0, 0, loc),
		},
		{
			name:    "date only from an afternoon completion",
			anchor:  time.Date(2016, 8, 26, 15, 0, 0, 0, loc),
			hasTime: false,
			rule:    "FREQ=DAILY;INTERVAL=1;FROM=COMPLETION",
			want:    time.Date(2016, 8, 27, 0, 0, 0, 0, loc),
		},
		{
			name:     "weekly by day from due date",
			anchor:   time.Date(2016, 8, 29, 10, 0, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE",
			want:     time.Date(2016, 8, 31, 10, 0, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "weekly by day from completion skips interval weeks",
			anchor:   time.Date(2016, 8, 31, 9, 0, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;FROM=COMPLETION",
			want:     time.Date(2016, 9, 12, 9, 0, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "single weekday equal to anchor weekday moves a full week",
			anchor:   time.Date(2016, 8, 29, 9, 0, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO;FROM=COMPLETION",
			want:     time.Date(2016, 9, 5, 9, 0, 0, 0, loc),
			wantTime: true,
		},
		{
			name:    "weekly by day from completion date only",
			anchor:  time.Date(2016, 9, 2, 18, 0, 0, 0, loc),
			hasTime: false,
			rule:    "FREQ=WEEKLY;INTERVAL=1;BYDAY=TU,SA;FROM=COMPLETION",
			want:    time.Date(2016, 9, 3, 0, 0, 0, 0, loc),
		},
		{
			name:     "monthly end of month every other month",
			anchor:   time.Date(2017, 1, 31, 8, 0, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=MONTHLY;INTERVAL=2",
			want:     time.Date(2017, 3, 31, 8, 0, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "february end stays at month end",
			anchor:   time.Date(2017, 2, 28, 8, 0, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=MONTHLY;INTERVAL=1",
			want:     time.Date(2017, 3, 31, 8, 0, 0, 0, loc),
			wantTime: true,
		},
		{
			name:    "month end across the year",
			anchor:  time.Date(2016, 11, 30, 0, 0, 0, 0, loc),
			hasTime: false,
			rule:    "FREQ=MONTHLY;INTERVAL=3",
			want:    time.Date(2017, 2, 28, 0, 0, 0, 0, loc),
		},
		{
			name:     "monthly mid month",
			anchor:   time.Date(2017, 1, 15, 9, 45, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=MONTHLY;INTERVAL=1",
			want:     time.Date(2017, 2, 15, 9, 45, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "monthly on the 30th skips february",
			anchor:   time.Date(2017, 1, 30, 9, 45, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=MONTHLY;INTERVAL=1",
			want:     time.Date(2017, 3, 30, 9, 45, 0, 0, loc),
			wantTime: true,
		},
		{
			name:     "yearly",
			anchor:   time.Date(2016, 8, 26, 12, 30, 0, 0, loc),
			hasTime:  true,
			rule:     "FREQ=YEARLY;INTERVAL=2",
			want:     time.Date(2018, 8, 26, 12, 30, 0, 0, loc),
			wantTime: true,
		},
		{
			name:    "yearly on leap day waits for the next leap year",
			anchor:  time.Date(2016, 2, 29, 0, 0, 0, 0, loc),
			hasTime: false,
			rule:    "FREQ=YEARLY;INTERVAL=1",
			want:    time.Date(2020, 2, 29, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ, ok := calc.Next(tt.anchor, tt.hasTime, mustParse(t, tt.rule)).Get()
			require.True(t, ok, "expected an occurrence")
			assertSameInstant(t, tt.want, occ.Time)
			assert.Equal(t, tt.wantTime, occ.HasTime)
		})
	}
}

func TestCalculator_Exhausted(t *testing.T) {
	calc := NewCalculator(time.UTC)
	anchor := time.Date(2016, 8, 26, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule string
	}{
		{"count of one only yields the anchor", "FREQ=DAILY;INTERVAL=1;COUNT=1"},
		{"yearly count of one", "FREQ=YEARLY;COUNT=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Next(anchor, true, mustParse(t, tt.rule))
			assert.True(t, got.IsAbsent())
		})
	}
}

func TestCalculator_CountAllowsNextOccurrence(t *testing.T) {
	calc := NewCalculator(time.UTC)
	anchor := time.Date(2016, 8, 26, 12, 30, 0, 0, time.UTC)

	occ, ok := calc.Next(anchor, true, mustParse(t, "FREQ=DAILY;COUNT=2")).Get()
	require.True(t, ok)
	assertSameInstant(t, anchor.AddDate(0, 0, 1), occ.Time)
}

func TestCalculator_KeepsWallClockAcrossDST(t *testing.T) {
	ny := mustLocation(t, "America/New_York")
	calc := NewCalculator(ny)

	tests := []struct {
		name   string
		anchor time.Time
		rule   string
		want   time.Time
	}{
		{
			name:   "daily into daylight time",
			anchor: time.Date(2016, 3, 12, 12, 30, 0, 0, ny),
			rule:   "FREQ=DAILY",
			want:   time.Date(2016, 3, 13, 12, 30, 0, 0, ny),
		},
		{
			name:   "weekly out of daylight time",
			anchor: time.Date(2016, 11, 1, 8, 15, 0, 0, ny),
			rule:   "FREQ=WEEKLY",
			want:   time.Date(2016, 11, 8, 8, 15, 0, 0, ny),
		},
		{
			name:   "weekly by day from completion into daylight time",
			anchor: time.Date(2016, 3, 11, 7, 0, 0, 0, ny),
			rule:   "FREQ=WEEKLY;BYDAY=MO;FROM=COMPLETION",
			want:   time.Date(2016, 3, 14, 7, 0, 0, 0, ny),
		},
		{
			name:   "month end into daylight time",
			anchor: time.Date(2016, 2, 29, 21, 0, 0, 0, ny),
			rule:   "FREQ=MONTHLY",
			want:   time.Date(2016, 3, 31, 21, 0, 0, 0, ny),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ, ok := calc.Next(tt.anchor, true, mustParse(t, tt.rule)).Get()
			require.True(t, ok)
			assertSameInstant(t, tt.want, occ.Time)
			assert.Equal(t, tt.anchor.Hour(), occ.Time.In(ny).Hour())
			assert.Equal(t, tt.anchor.Minute(), occ.Time.In(ny).Minute())
		})
	}
}

func TestCalculator_SubDayIsPureAddition(t *testing.T) {
	ny := mustLocation(t, "America/New_York")
	calc := NewCalculator(ny)

	anchors := []time.Time{
		time.Date(2016, 3, 13, 1, 30, 0, 0, ny),   // before spring forward
		time.Date(2016, 11, 6, 0, 45, 0, 0, ny),   // before fall back
		time.Date(2016, 1, 31, 23, 59, 0, 0, ny),  // month end
		time.Date(2016, 12, 31, 23, 0, 0, 0, ny),  // year end
		time.Date(2016, 8, 26, 12, 30, 17, 0, ny), // seconds kept
	}
	rules := map[string]time.Duration{
		"FREQ=MINUTELY;INTERVAL=1":  time.Minute,
		"FREQ=MINUTELY;INTERVAL=90": 90 * time.Minute,
		"FREQ=HOURLY;INTERVAL=1":    time.Hour,
		"FREQ=HOURLY;INTERVAL=25":   25 * time.Hour,
	}

	for _, anchor := range anchors {
		for text, step := range rules {
			t.Run(fmt.Sprintf("%s/%s", anchor.Format(time.RFC3339), text), func(t *testing.T) {
				for _, hasTime := range []bool{true, false} {
					occ, ok := calc.Next(anchor, hasTime, mustParse(t, text)).Get()
					require.True(t, ok)
					assert.Equal(t, step, occ.Time.Sub(anchor))
					assert.True(t, occ.HasTime)
				}
			})
		}
	}
}

func TestCalculator_WeeklyFromCompletionPicksEarliestDay(t *testing.T) {
	calc := NewCalculator(time.UTC)
	daySets := [][]time.Weekday{
		{time.Monday},
		{time.Sunday, time.Saturday},
		{time.Monday, time.Wednesday, time.Friday},
		{time.Tuesday, time.Thursday},
		{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
	}

	start := time.Date(2016, 8, 1, 14, 0, 0, 0, time.UTC)
	for offset := 0; offset < 14; offset++ {
		anchor := start.AddDate(0, 0, offset)
		for interval := 1; interval <= 3; interval++ {
			for _, days := range daySets {
				rule := Rule{Freq: Weekly, Interval: interval, ByDay: days, Anchor: FromCompletionDate}
				t.Run(fmt.Sprintf("%s/%s", anchor.Format("2006-01-02"), rule), func(t *testing.T) {
					occ, ok := calc.Next(anchor, true, rule).Get()
					require.True(t, ok)

					advanced := anchor.AddDate(0, 0, 7*(interval-1))
					assert.Contains(t, days, occ.Time.Weekday())
					assert.True(t, occ.Time.After(advanced))
					assert.LessOrEqual(t, occ.Time.Sub(advanced), 7*24*time.Hour)
					for d := advanced.AddDate(0, 0, 1); d.Before(occ.Time); d = d.AddDate(0, 0, 1) {
						assert.NotContains(t, days, d.Weekday(), "skipped an earlier matching day %s", d)
					}
				})
			}
		}
	}
}

func TestCalculator_MonthEndAlwaysLandsOnMonthEnd(t *testing.T) {
	calc := NewCalculator(time.UTC)

	for month := time.January; month <= time.December; month++ {
		anchor := time.Date(2015, month+1, 0, 10, 0, 0, 0, time.UTC)
		for interval := 1; interval <= 13; interval++ {
			rule := Rule{Freq: Monthly, Interval: interval}
			occ, ok := calc.Next(anchor, true, rule).Get()
			require.True(t, ok)

			target := time.Date(2015, month+time.Month(interval)+1, 0, 10, 0, 0, 0, time.UTC)
			assertSameInstant(t, target, occ.Time)
			assert.True(t, isEndOfMonth(occ.Time), "%s is not a month end", occ.Time)
		}
	}
}
