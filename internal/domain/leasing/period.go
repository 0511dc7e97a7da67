package leasing

import (
	"time"
)

// Period is one calendar-month billing window anchored to the lease start
// day. End is inclusive and always equals the day before the next period's
// start, so consecutive periods tile the timeline with no gaps or overlaps.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Key identifies the period by its anchored start date.
func (p Period) Key() string {
	return p.Start.Format("2006-01-02")
}

// Contains reports whether the civil date of t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	d := civilDate(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// PeriodOf derives the billing period covering date for a lease that started
// at leaseStart. Anchor days 29-31 clamp to the last valid day of shorter
// months, which keeps the schedule contiguous across February. Pure function;
// both arguments are treated as civil dates in UTC.
func PeriodOf(leaseStart, date time.Time) Period {
	anchorDay := leaseStart.Day()
	d := civilDate(date)

	start := anchoredStart(anchorDay, d.Year(), d.Month())
	if d.Before(start) {
		prev := d.AddDate(0, 0, -d.Day()) // last day of previous month
		start = anchoredStart(anchorDay, prev.Year(), prev.Month())
	}
	return periodFrom(anchorDay, start)
}

// Schedule returns count consecutive periods starting from the lease start
// date. Used by the billing-periods view, which extends a few periods past
// the lease end so upcoming windows are visible.
func Schedule(leaseStart time.Time, count int) []Period {
	anchorDay := leaseStart.Day()
	first := civilDate(leaseStart)

	periods := make([]Period, 0, count)
	for i := 0; i < count; i++ {
		// AddDate on a clamped date drifts, so month arithmetic is done
		// on year/month indices instead.
		y, m := addMonths(first.Year(), first.Month(), i)
		start := anchoredStart(anchorDay, y, m)
		periods = append(periods, periodFrom(anchorDay, start))
	}
	return periods
}

// PeriodsBetween returns every period from the lease start through the
// period containing end, inclusive.
func PeriodsBetween(leaseStart, end time.Time) []Period {
	anchorDay := leaseStart.Day()
	first := civilDate(leaseStart)
	last := PeriodOf(leaseStart, end)

	var periods []Period
	for i := 0; ; i++ {
		y, m := addMonths(first.Year(), first.Month(), i)
		start := anchoredStart(anchorDay, y, m)
		if start.After(last.Start) {
			break
		}
		periods = append(periods, periodFrom(anchorDay, start))
	}
	return periods
}

func periodFrom(anchorDay int, start time.Time) Period {
	ny, nm := addMonths(start.Year(), start.Month(), 1)
	nextStart := anchoredStart(anchorDay, ny, nm)
	return Period{Start: start, End: nextStart.AddDate(0, 0, -1)}
}

// anchoredStart places the anchor day inside the given month, clamping to
// the month's last day when the anchor day does not exist there.
func anchoredStart(anchorDay, year int, month time.Month) time.Time {
	day := anchorDay
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + n
	return idx / 12, time.Month(idx%12 + 1)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
