// Package calendar provides the year/month arithmetic used to plan scraping runs.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month identifies a calendar month. Month is 1-based.
type Month struct {
	Year  int
	Month int
}

// FromTime returns the month containing t.
func FromTime(t time.Time) Month {
	return Month{Year: t.Year(), Month: int(t.Month())}
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(raw string) (Month, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return Month{}, fmt.Errorf("parse month %q: expected YYYY-MM", raw)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: year: %w", raw, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: month: %w", raw, err)
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("parse month %q: month must be between 1 and 12", raw)
	}
	return Month{Year: year, Month: month}, nil
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Prev returns the previous month, rolling the year at January.
func (m Month) Prev() Month {
	if m.Month <= 1 {
		return Month{Year: m.Year - 1, Month: 12}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Next returns the following month, rolling the year at December.
func (m Month) Next() Month {
	if m.Month >= 12 {
		return Month{Year: m.Year + 1, Month: 1}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// AddMonths shifts the month by n, which may be negative.
func (m Month) AddMonths(n int) Month {
	idx := m.Year*12 + (m.Month - 1) + n
	return Month{Year: idx / 12, Month: idx%12 + 1}
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// LastDay returns the number of days in the month.
func (m Month) LastDay() int {
	return time.Date(m.Year, time.Month(m.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Walk returns count months starting at start and walking backward.
func Walk(start Month, count int) []Month {
	if count <= 0 {
		return nil
	}
	out := make([]Month, 0, count)
	m := start
	for i := 0; i < count; i++ {
		out = append(out, m)
		m = m.Prev()
	}
	return out
}

// Between returns every month from end back to start, both inclusive. It is
// empty when start is after end.
func Between(start, end Month) []Month {
	if end.Before(start) {
		return nil
	}
	var out []Month
	for m := end; !m.Before(start); m = m.Prev() {
		out = append(out, m)
	}
	return out
}
