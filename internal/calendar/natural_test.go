package calendar

import (
	"testing"
	"time"
)

func TestParseNatural(t *testing.T) {
	// Wednesday
	c := FixedClock(time.Date(2024, time.June, 12, 15, 4, 0, 0, time.Local))

	tests := []struct {
		in   string
		want string
	}{
		{"", "2024-06-12"},
		{"today", "2024-06-12"},
		{"Tomorrow", "2024-06-13"},
		{"yesterday", "2024-06-11"},
		{"fri", "2024-06-14"},
		{"wednesday", "2024-06-19"},
		{"mon", "2024-06-17"},
		{"nextweek", "2024-06-17"},
		{"2024-07-01", "2024-07-01"},
		{"07/04/2024", "2024-07-04"},
		{"Jan 2", "2024-01-02"},
		{"Jan 2, 2025", "2025-01-02"},
	}

	for _, tt := range tests {
		got, err := ParseNatural(c, tt.in)
		if err != nil {
			t.Errorf("ParseNatural(%q): %v", tt.in, err)
			continue
		}
		if DayKey(got) != tt.want {
			t.Errorf("ParseNatural(%q) = %s, want %s", tt.in, DayKey(got), tt.want)
		}
	}
}

func TestParseNaturalRejectsGarbage(t *testing.T) {
	c := FixedClock(time.Date(2024, time.June, 12, 0, 0, 0, 0, time.Local))
	for _, in := range []string{"someday", "2024-13-40", "fri!"} {
		if _, err := ParseNatural(c, in); err == nil {
			t.Errorf("ParseNatural(%q) should fail", in)
		}
	}
}
