package core

import (
	"strings"
	"time"
)

// Month is a calendar month, zero-based (JANUARY == 0).
type Month int

const (
	January Month = iota
	February
	March
	April
	May
	June
	July
	August
	September
	October
	November
	December
)

var monthNames = [12]string{
	"JANUARY", "FEBRUARY", "MARCH", "APRIL", "MAY", "JUNE",
	"JULY", "AUGUST", "SEPTEMBER", "OCTOBER", "NOVEMBER", "DECEMBER",
}

// Months returns every month in calendar order.
func Months() []Month {
	out := make([]Month, len(monthNames))
	for i := range monthNames {
		out[i] = Month(i)
	}
	return out
}

// ParseMonth resolves a month name such as "MARCH" (case-insensitive).
func ParseMonth(name string) (Month, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range monthNames {
		if n == name {
			return Month(i), true
		}
	}
	return 0, false
}

// MonthOf returns the Month of a time.Month.
func MonthOf(m time.Month) Month {
	return Month(m - 1)
}

func (m Month) Valid() bool {
	return m >= January && m <= December
}

func (m Month) String() string {
	if !m.Valid() {
		return ""
	}
	return monthNames[m]
}

// TimeMonth converts to the standard library month.
func (m Month) TimeMonth() time.Month {
	return time.Month(m + 1)
}
