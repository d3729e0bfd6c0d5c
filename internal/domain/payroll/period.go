package payroll

import (
	"fmt"
	"time"
)

const periodLayout = "2006-01-02"

// PeriodWindow is the inclusive [Start, End] day range of a run, UTC midnight aligned.
type PeriodWindow struct {
	Start time.Time
	End   time.Time
}

// NormalizePeriod maps any instant in a month to the canonical period day:
// the last day of that month at UTC midnight.
func NormalizePeriod(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	t = t.UTC()
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1)
}

// WindowFor returns the window for a normalized period: the first of its month through the period day.
func WindowFor(period time.Time) PeriodWindow {
	if period.IsZero() {
		return PeriodWindow{}
	}
	end := truncateDay(period)
	return PeriodWindow{
		Start: time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC),
		End:   end,
	}
}

func (w PeriodWindow) valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero()
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// inclusiveDays is floor((end - start) / 1 day) + 1.
func inclusiveDays(start, end time.Time) int64 {
	diff := truncateDay(end).Sub(truncateDay(start))
	days := int64(diff / (24 * time.Hour))
	if diff < 0 && diff%(24*time.Hour) != 0 {
		days--
	}
	return days + 1
}

func FormatPeriod(period time.Time) string {
	return period.UTC().Format(periodLayout)
}

// ParsePeriod accepts YYYY-MM-DD or YYYY-MM and normalizes the result.
func ParsePeriod(raw string) (time.Time, error) {
	for _, layout := range []string{periodLayout, "2006-01"} {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return NormalizePeriod(parsed), nil
		}
	}
	return time.Time{}, newError(ErrInvalidInput, "payroll period %q must be YYYY-MM-DD or YYYY-MM", raw)
}

func formatRunCode(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%04d", runCodePrefix, year, sequence)
}
