package utils

import (
	"testing"
	"time"
)

func TestParseDayValid(t *testing.T) {
	got, err := ParseDay("2025-03-09")
	if err != nil {
		t.Fatalf("ParseDay() failed: %v", err)
	}
	if got.Year() != 2025 || got.Month() != time.March || got.Day() != 9 {
		t.Errorf("ParseDay() = %v, want 2025-03-09", got)
	}
}

func TestParseDayInvalid(t *testing.T) {
	invalid := []string{"", "2025-3-9", "09-03-2025", "2025/03/09", "not-a-day", "2025-13-01"}
	for _, day := range invalid {
		if _, err := ParseDay(day); err == nil {
			t.Errorf("ParseDay(%q) should return an error", day)
		}
	}
}

func TestAddDays(t *testing.T) {
	tests := []struct {
		day  string
		n    int
		want string
	}{
		{"2025-03-09", 1, "2025-03-10"},
		{"2025-03-09", -1, "2025-03-08"},
		{"2025-02-28", 1, "2025-03-01"},
		{"2024-02-28", 1, "2024-02-29"}, // leap year
		{"2025-12-31", 1, "2026-01-01"},
		{"2025-01-01", -1, "2024-12-31"},
		{"2025-03-09", 0, "2025-03-09"},
	}
	for _, tc := range tests {
		got, err := AddDays(tc.day, tc.n)
		if err != nil {
			t.Fatalf("AddDays(%q, %d) failed: %v", tc.day, tc.n, err)
		}
		if got != tc.want {
			t.Errorf("AddDays(%q, %d) = %q, want %q", tc.day, tc.n, got, tc.want)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2025-03-09", "2025-03-09", 0},
		{"2025-03-09", "2025-03-10", 1},
		{"2025-03-10", "2025-03-09", -1},
		{"2025-02-26", "2025-03-05", 7},
		{"2024-12-31", "2025-01-01", 1},
	}
	for _, tc := range tests {
		got, err := DaysBetween(tc.a, tc.b)
		if err != nil {
			t.Fatalf("DaysBetween(%q, %q) failed: %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Errorf("DaysBetween(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMonthBefore(t *testing.T) {
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	lateJan := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	dec24 := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	if !MonthBefore(jan, feb) {
		t.Error("January should be before February")
	}
	if MonthBefore(feb, jan) {
		t.Error("February should not be before January")
	}
	if MonthBefore(jan, lateJan) {
		t.Error("same month should not compare as before")
	}
	if !MonthBefore(dec24, jan) {
		t.Error("December 2024 should be before January 2025")
	}
}

func TestSameCalendarMonth(t *testing.T) {
	a := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)
	c := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	if !SameCalendarMonth(a, b) {
		t.Error("first and last day of June should be the same month")
	}
	if SameCalendarMonth(b, c) {
		t.Error("June and July should not be the same month")
	}
}

func TestValidateTimezone(t *testing.T) {
	valid := []string{"", "Local", "UTC", "America/New_York", "Europe/London"}
	for _, tz := range valid {
		if !ValidateTimezone(tz) {
			t.Errorf("ValidateTimezone(%q) = false, want true", tz)
		}
	}
	if ValidateTimezone("Not/AZone") {
		t.Error("ValidateTimezone(\"Not/AZone\") = true, want false")
	}
}

func TestGetTodayInTimezone(t *testing.T) {
	day, err := GetTodayInTimezone("UTC")
	if err != nil {
		t.Fatalf("GetTodayInTimezone() failed: %v", err)
	}
	if !ValidateDayKey(day) {
		t.Errorf("GetTodayInTimezone() returned invalid day key %q", day)
	}

	if _, err := GetTodayInTimezone("Invalid/Zone"); err == nil {
		t.Error("GetTodayInTimezone with invalid zone should return an error")
	}
}
