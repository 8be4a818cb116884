// Package calendar holds the week and day arithmetic used by the planner.
// All functions work on local calendar fields; day keys are the identity
// used for every task/date comparison.
package calendar

import (
	"fmt"
	"time"

	"github.com/dori/weekplan/internal/model"
)

// DaysPerWeek is the width of the planner grid
const DaysPerWeek = 7

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant
type FixedClock time.Time

// Now returns the fixed instant
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Midnight normalizes t to 00:00 local time on the same calendar day
func Midnight(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// Today returns the current day at midnight. Everything that needs "now"
// goes through here.
func Today(c Clock) time.Time {
	return Midnight(c.Now())
}

// WeekStart returns the Monday of the week containing t.
// Sunday belongs to the week that started six days earlier.
func WeekStart(t time.Time) time.Time {
	d := Midnight(t)
	offset := int(d.Weekday()) - int(time.Monday)
	if d.Weekday() == time.Sunday {
		offset = 6
	}
	return d.AddDate(0, 0, -offset)
}

// WeekEnd returns the Sunday of the week starting at weekStart
func WeekEnd(weekStart time.Time) time.Time {
	return Midnight(weekStart).AddDate(0, 0, DaysPerWeek-1)
}

// WeekDays returns Monday..Sunday starting at weekStart
func WeekDays(weekStart time.Time) []time.Time {
	start := Midnight(weekStart)
	days := make([]time.Time, DaysPerWeek)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// ShiftWeek moves weekStart by n weeks
func ShiftWeek(weekStart time.Time, n int) time.Time {
	return Midnight(weekStart).AddDate(0, 0, n*DaysPerWeek)
}

// DayKey formats t as YYYY-MM-DD using local calendar fields
func DayKey(t time.Time) string {
	return t.In(time.Local).Format(model.DayKeyLayout)
}

// ParseDayKey parses a YYYY-MM-DD key into local midnight
func ParseDayKey(key string) (time.Time, error) {
	if !model.ValidDayKey(key) {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", key, model.ErrBadDayKey)
	}
	t, err := time.ParseInLocation(model.DayKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", key, err)
	}
	return t, nil
}

// IsToday reports whether t falls on the current day
func IsToday(c Clock, t time.Time) bool {
	return DayKey(t) == DayKey(Today(c))
}

// IsPast reports whether t falls on a day before today.
// Never true when IsToday is true.
func IsPast(c Clock, t time.Time) bool {
	return DayKey(t) < DayKey(Today(c))
}

// FormatDisplay renders a day like "Mon, Jun 10"
func FormatDisplay(t time.Time) string {
	return t.In(time.Local).Format("Mon, Jan 2")
}

// FormatWeekRange renders the header label, e.g. "Jun 10 - 16, 2024" or
// "Jun 24 - Jul 30, 2024" when the week spans two months
func FormatWeekRange(weekStart time.Time) string {
	start := Midnight(weekStart)
	end := WeekEnd(start)
	if start.Month() == end.Month() {
		return fmt.Sprintf("%s %d - %d, %d", start.Format("Jan"), start.Day(), end.Day(), start.Year())
	}
	return fmt.Sprintf("%s %d - %s %d, %d", start.Format("Jan"), start.Day(), end.Format("Jan"), end.Day(), start.Year())
}
