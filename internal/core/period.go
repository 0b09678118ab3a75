package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar month. Periods are totally ordered by Index.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod builds a period, rejecting months outside 1-12.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, ErrInvalidMonth
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodFromIndex is the inverse of Index.
func PeriodFromIndex(i int) Period {
	y, m := i/12, i%12
	if m < 0 {
		y, m = y-1, m+12
	}
	return Period{Year: y, Month: time.Month(m + 1)}
}

// Index returns year*12 + month - 1.
func (p Period) Index() int {
	return p.Year*12 + int(p.Month) - 1
}

func (p Period) Next() Period { return PeriodFromIndex(p.Index() + 1) }

func (p Period) Prev() Period { return PeriodFromIndex(p.Index() - 1) }

// AddMonths moves n months forward, or backward when n is negative.
func (p Period) AddMonths(n int) Period { return PeriodFromIndex(p.Index() + n) }

func (p Period) Before(o Period) bool { return p.Index() < o.Index() }

// Key renders the zero-padded "YYYY-MM" form.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) String() string { return p.Key() }

// Start returns the first day of the month.
func (p Period) Start() Date {
	return NewDate(p.Year, int(p.Month), 1)
}

// Days returns the number of days in the month.
func (p Period) Days() int {
	return p.Start().AddDate(0, 1, -1).Day()
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Period{}, fmt.Errorf("invalid period %q", s)
	}
	year, err := strconv.Atoi(y)
	if err != nil || year < 1 {
		return Period{}, fmt.Errorf("invalid period %q", s)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q", s)
	}
	return NewPeriod(year, month)
}
