package calendar

import (
	"fmt"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

// ParseNatural turns a day written by a person into local midnight. It
// accepts today, yesterday, tomorrow, a weekday name (the next one, never
// today), nextweek, YYYY-MM-DD, MM/DD/YYYY, "Jan 2" and "Jan 2, 2006".
func ParseNatural(c Clock, s string) (time.Time, error) {
	today := Today(c)
	word := strings.ToLower(strings.TrimSpace(s))

	switch word {
	case "", "today":
		return today, nil
	case "tomorrow", "tom":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "nextweek":
		return ShiftWeek(WeekStart(today), 1), nil
	}

	if day, ok := weekdays[word]; ok {
		return nextWeekday(today, day), nil
	}

	if t, err := ParseDayKey(word); err == nil {
		return t, nil
	}

	for _, format := range []string{"01/02/2006", "Jan 2, 2006"} {
		if t, err := time.ParseInLocation(format, strings.TrimSpace(s), time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("Jan 2", strings.TrimSpace(s), time.Local); err == nil {
		return time.Date(today.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func nextWeekday(today time.Time, day time.Weekday) time.Time {
	n := int(day - today.Weekday())
	if n <= 0 {
		n += 7
	}
	return today.AddDate(0, 0, n)
}
