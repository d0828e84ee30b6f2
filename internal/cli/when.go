package cli

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// parseWhen reads "2006-01-02" or "2006-01-02 15:04" (a T separator is also
// accepted) and reports whether a time of day was given.
func parseWhen(value string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, nil
	}
	value = strings.Replace(value, "T", " ", 1)

	if t, err := time.ParseInLocation(dateTimeLayout, value, loc); err == nil {
		return t, true, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or YYYY-MM-DD HH:MM", value)
}

// formatWhen prints a due date the way parseWhen reads it
func formatWhen(t time.Time, hasTime bool, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if hasTime {
		return t.In(loc).Format(dateTimeLayout)
	}
	return t.In(loc).Format(dateLayout)
}
