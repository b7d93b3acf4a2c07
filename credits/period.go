package credits

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - A calendar month, the unit every budget is booked against
// =============================================================================

type Period struct {
	Year  int
	Month time.Month
}

func NewPeriod(year int, month time.Month) Period { return Period{Year: year, Month: month} }

// PeriodOf returns the month containing t (in UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod validates raw year/month numbers, as received from a request.
func ParsePeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: time.Month(month)}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %d-%02d", ErrInvalidPeriod, year, month)
	}
	return p, nil
}

func (p Period) Valid() bool {
	return p.Year >= 1 && p.Year <= 9999 && p.Month >= time.January && p.Month <= time.December
}

// Start is the first instant of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last instant of the month.
func (p Period) End() time.Time {
	return p.Next().Start().Add(-time.Nanosecond)
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start()) && !t.After(p.End())
}

func (p Period) Previous() Period { return PeriodOf(p.Start().AddDate(0, -1, 0)) }
func (p Period) Next() Period     { return PeriodOf(p.Start().AddDate(0, 1, 0)) }

func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }
