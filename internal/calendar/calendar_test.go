package calendar

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestWeekStartWholeWeekMapsToMonday(t *testing.T) {
	monday := day(2024, time.June, 10)
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i).Add(15*time.Hour + 30*time.Minute)
		assert.Equal(t, monday, WeekStart(d), "day %s", d.Weekday())
	}
}

func TestWeekStartSundayGoesBack(t *testing.T) {
	sunday := day(2024, time.June, 16)
	require.Equal(t, time.Sunday, sunday.Weekday())

	got := WeekStart(sunday)
	assert.Equal(t, day(2024, time.June, 10), got)
	assert.NotEqual(t, day(2024, time.June, 17), got)
}

func TestWeekStartAcrossYear(t *testing.T) {
	// 2025-01-01 is a Wednesday
	assert.Equal(t, day(2024, time.December, 30), WeekStart(day(2025, time.January, 1)))
}

func TestWeekDays(t *testing.T) {
	days := WeekDays(day(2024, time.June, 10))
	require.Len(t, days, 7)
	assert.Equal(t, time.Monday, days[0].Weekday())
	assert.Equal(t, time.Sunday, days[6].Weekday())
	assert.Equal(t, "2024-06-16", DayKey(days[6]))
	assert.Equal(t, days[6], WeekEnd(days[0]))
}

func TestDayKeyZeroPadded(t *testing.T) {
	assert.Equal(t, "2024-01-05", DayKey(time.Date(2024, time.January, 5, 23, 59, 0, 0, time.Local)))
}

func TestDayKeyOrderMatchesChronology(t *testing.T) {
	start := day(2023, time.December, 25)
	var dates []time.Time
	for i := 0; i < 400; i += 13 {
		dates = append(dates, start.AddDate(0, 0, i))
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[len(dates)-1-i] = DayKey(d)
	}
	sort.Strings(keys)

	for i, d := range dates {
		assert.Equal(t, DayKey(d), keys[i])
	}
}

func TestParseDayKeyRoundTrip(t *testing.T) {
	d := day(2024, time.February, 29)
	got, err := ParseDayKey(DayKey(d))
	require.NoError(t, err)
	assert.Equal(t, d, got)

	_, err = ParseDayKey("2024-2-29")
	assert.Error(t, err)
}

func TestTodayAndClassification(t *testing.T) {
	clock := FixedClock(time.Date(2024, time.June, 12, 14, 0, 0, 0, time.Local))

	assert.Equal(t, day(2024, time.June, 12), Today(clock))

	cases := []struct {
		date  time.Time
		today bool
		past  bool
	}{
		{day(2024, time.June, 11), false, true},
		{day(2024, time.June, 12).Add(23 * time.Hour), true, false},
		{day(2024, time.June, 13), false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.today, IsToday(clock, tc.date), DayKey(tc.date))
		assert.Equal(t, tc.past, IsPast(clock, tc.date), DayKey(tc.date))
		assert.False(t, IsToday(clock, tc.date) && IsPast(clock, tc.date))
	}
}

func TestShiftWeek(t *testing.T) {
	monday := day(2024, time.June, 10)
	assert.Equal(t, day(2024, time.June, 3), ShiftWeek(monday, -1))
	assert.Equal(t, day(2024, time.June, 17), ShiftWeek(monday, 1))
}

func TestFormatWeekRange(t *testing.T) {
	assert.Equal(t, "Jun 10 - 16, 2024", FormatWeekRange(day(2024, time.June, 10)))
	assert.Equal(t, "Jul 29 - Aug 4, 2024", FormatWeekRange(day(2024, time.July, 29)))
	assert.Equal(t, "Mon, Jun 10", FormatDisplay(day(2024, time.June, 10)))
}
