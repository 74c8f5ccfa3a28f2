// Package timerange computes the time windows events are fetched for and formats
// instants the way the user sees them on their clock.
package timerange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ErrZeroInstant is returned by Custom when a boundary was never set.
var ErrZeroInstant = errors.New("range boundary is not a valid instant")

// Range is a [Start, End] pair of instants.
type Range struct {
	Start time.Time
	End   time.Time
}

// CurrentDay returns the range covering the current local day.
func CurrentDay() Range {
	return Day(time.Now())
}

// Day returns [local midnight, local 23:59:59.999] for the day containing t.
func Day(t time.Time) Range {
	local := t.In(time.Local)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	end := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, int(999*time.Millisecond), time.Local)
	return Range{Start: start, End: end}
}

// Custom passes an explicit range through. Ordering of start and end is the
// caller's concern.
func Custom(start, end time.Time) (Range, error) {
	if start.IsZero() || end.IsZero() {
		return Range{}, ErrZeroInstant
	}
	return Range{Start: start, End: end}, nil
}

// ParseDay parses a YYYY-MM-DD string into the local day range it names.
func ParseDay(s string) (Range, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return Range{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return Day(d), nil
}

// FormatDate formats t as a zero-padded local YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.In(time.Local).Format(dateLayout)
}

// FormatTime formats t as a zero-padded local HH:mm.
func FormatTime(t time.Time) string {
	return t.In(time.Local).Format(timeLayout)
}
