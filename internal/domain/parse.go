package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a local time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight (0..1439).
func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

// String formats the time as HH:MM.
func (c ClockTime) String() string { return FormatMinutes(c.Minutes()) }

// ParseClockTime parses a strict "HH:MM" value.
func ParseClockTime(s string) (ClockTime, error) {
	m, err := parseHHMM(s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q: %v", ErrInvalidTime, s, err)
	}
	return ClockTime{Hour: m / 60, Minute: m % 60}, nil
}

// MustClockTime is ParseClockTime for constants and tests.
func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

// NormalizeTimeInput accepts loose user input like "8", "830", "0830", "8.30"
// or " 08 : 30 " and returns the canonical clock time.
func NormalizeTimeInput(raw string) (ClockTime, error) {
	clean := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	clean = strings.ReplaceAll(clean, ".", ":")
	if clean == "" {
		return ClockTime{}, fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	if !strings.Contains(clean, ":") && isAllDigits(clean) {
		switch len(clean) {
		case 4:
			clean = clean[:2] + ":" + clean[2:]
		case 3:
			clean = "0" + clean[:1] + ":" + clean[1:]
		case 2, 1:
			clean = clean + ":00"
		}
	}
	return ParseClockTime(clean)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute")
	}
	return h*60 + m, nil
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	h := mins / 60
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Date is a calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "2006-01-02". An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Short renders the date as DD.MM.
func (d Date) Short() string {
	return fmt.Sprintf("%02d.%02d", d.Day, int(d.Month))
}
