package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// ErrInvalidRule is wrapped by every error returned from Parse
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Frequency is the repeat unit of a rule
type Frequency int

const (
	Minutely Frequency = iota
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = map[Frequency]string{
	Minutely: "MINUTELY",
	Hourly:   "HOURLY",
	Daily:    "DAILY",
	Weekly:   "WEEKLY",
	Monthly:  "MONTHLY",
	Yearly:   "YEARLY",
}

// String returns the RRULE token for the frequency
func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// AnchorMode selects the date a series is computed from.
type AnchorMode int

const (
	// FromDueDate repeats relative to the previous due date.
	FromDueDate AnchorMode = iota
	// FromCompletionDate repeats relative to when the task was completed.
	FromCompletionDate
)

const (
	rulePrefix = "RRULE:"
	// anchorKey is the non-standard field carrying the anchor mode. It is
	// appended after the standard fields.
	anchorKey        = "FROM"
	anchorCompletion = "COMPLETION"
)

var weekdayTokens = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var weekdayNames = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Rule is a parsed recurrence rule. The zero value is not valid; use Parse.
type Rule struct {
	Freq     Frequency
	Interval int
	// Count is the number of remaining occurrences including the current one.
	Count mo.Option[int]
	// ByDay is only kept for Weekly rules, sorted Sunday first.
	ByDay  []time.Weekday
	Anchor AnchorMode
}

// IsSubDay reports whether the rule repeats by minutes or hours
func (r Rule) IsSubDay() bool {
	return r.Freq == Minutely || r.Freq == Hourly
}

// WithCount returns a copy of the rule with the remaining count set to n
func (r Rule) WithCount(n int) Rule {
	r.Count = mo.Some(n)
	return r
}

// String serializes the rule back to its stored text form.
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(r.Freq.String())
	b.WriteString(";INTERVAL=")
	b.WriteString(strconv.Itoa(r.Interval))
	if count, ok := r.Count.Get(); ok {
		b.WriteString(";COUNT=")
		b.WriteString(strconv.Itoa(count))
	}
	if len(r.ByDay) > 0 {
		days := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			days[i] = weekdayNames[d]
		}
		b.WriteString(";BYDAY=")
		b.WriteString(strings.Join(days, ","))
	}
	if r.Anchor == FromCompletionDate {
		b.WriteString(";" + anchorKey + "=" + anchorCompletion)
	}
	return b.String()
}

// Parse reads the stored text form of a rule.
//
// The anchor marker is split off first, then FREQ, INTERVAL, COUNT and BYDAY
// are read. BYDAY is dropped for every frequency but WEEKLY.
func Parse(text string) (Rule, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, rulePrefix)
	if text == "" {
		return Rule{}, fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}

	fields, anchor := splitAnchor(strings.Split(text, ";"))

	rule := Rule{Interval: 1, Anchor: anchor}
	seen := make(map[string]bool, len(fields))
	hasFreq := false

	for _, field := range fields {
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return Rule{}, fmt.Errorf("%w: malformed field %q", ErrInvalidRule, field)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.ToUpper(strings.TrimSpace(value))
		if seen[key] {
			return Rule{}, fmt.Errorf("%w: duplicate field %s", ErrInvalidRule, key)
		}
		seen[key] = true

		switch key {
		case "FREQ":
			freq, err := parseFrequency(value)
			if err != nil {
				return Rule{}, err
			}
			rule.Freq = freq
			hasFreq = true
		case "INTERVAL":
			n, err := parsePositive(key, value)
			if err != nil {
				return Rule{}, err
			}
			rule.Interval = n
		case "COUNT":
			n, err := parsePositive(key, value)
			if err != nil {
				return Rule{}, err
			}
			rule.Count = mo.Some(n)
		case "BYDAY":
			days, err := parseByDay(value)
			if err != nil {
				return Rule{}, err
			}
			rule.ByDay = days
		case "WKST":
			// accepted for compatibility, the week start never changes a result here
			if _, ok := weekdayTokens[value]; !ok {
				return Rule{}, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, value)
			}
		default:
			return Rule{}, fmt.Errorf("%w: unsupported field %s", ErrInvalidRule, key)
		}
	}

	if !hasFreq {
		return Rule{}, fmt.Errorf("%w: missing FREQ", ErrInvalidRule)
	}
	if rule.Freq != Weekly {
		rule.ByDay = nil
	}
	return rule, nil
}

// splitAnchor removes every FROM= field and reports the anchor mode it selected
func splitAnchor(fields []string) ([]string, AnchorMode) {
	anchor := FromDueDate
	kept := fields[:0:0]
	for _, field := range fields {
		key, value, _ := strings.Cut(field, "=")
		if strings.EqualFold(strings.TrimSpace(key), anchorKey) {
			if strings.EqualFold(strings.TrimSpace(value), anchorCompletion) {
				anchor = FromCompletionDate
			}
			continue
		}
		kept = append(kept, field)
	}
	return kept, anchor
}

func parseFrequency(value string) (Frequency, error) {
	for freq, name := range frequencyNames {
		if name == value {
			return freq, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, value)
}

func parsePositive(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidRule, key, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidRule, key, n)
	}
	return n, nil
}

func parseByDay(value string) ([]time.Weekday, error) {
	if value == "" {
		return nil, nil
	}
	set := make(map[time.Weekday]bool, 7)
	for _, token := range strings.Split(value, ",") {
		token = strings.TrimSpace(token)
		day, ok := weekdayTokens[token]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, token)
		}
		set[day] = true
	}
	days := make([]time.Weekday, 0, len(set))
	for day := range set {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}
