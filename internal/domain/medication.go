package domain

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleMode is the persisted discriminator of a Schedule.
type ScheduleMode string

const (
	ModeExact  ScheduleMode = "exact"
	ModePeriod ScheduleMode = "period"
)

// Period is a named part of the day with a preset clock time.
type Period struct {
	Key   string
	Title string
	Time  ClockTime
}

// Periods lists the day-period presets in display order.
var Periods = []Period{
	{Key: "morning", Title: "Morning", Time: ClockTime{Hour: 8}},
	{Key: "lunch", Title: "Lunch", Time: ClockTime{Hour: 13}},
	{Key: "day", Title: "Day", Time: ClockTime{Hour: 16}},
	{Key: "evening", Title: "Evening", Time: ClockTime{Hour: 20}},
	{Key: "night", Title: "Night", Time: ClockTime{Hour: 22, Minute: 30}},
}

// PeriodByKey looks up a preset by key.
func PeriodByKey(key string) (Period, bool) {
	for _, p := range Periods {
		if p.Key == key {
			return p, true
		}
	}
	return Period{}, false
}

// Dose is one daily dose of a schedule. Period is empty for exact schedules.
type Dose struct {
	Period string
	Time   ClockTime
}

// Schedule is either an ExactSchedule or a PeriodSchedule.
// Doses are returned in dose order, which is not necessarily sorted.
type Schedule interface {
	Mode() ScheduleMode
	Doses() []Dose
}

// ExactSchedule fires at explicit clock times.
type ExactSchedule struct {
	Times []ClockTime
}

func (ExactSchedule) Mode() ScheduleMode { return ModeExact }

func (s ExactSchedule) Doses() []Dose {
	out := make([]Dose, len(s.Times))
	for i, t := range s.Times {
		out[i] = Dose{Time: t}
	}
	return out
}

// PeriodEntry pairs a period label with the clock time chosen for it.
type PeriodEntry struct {
	Label string
	Time  ClockTime
}

// PeriodSchedule fires at clock times labelled with day periods.
type PeriodSchedule struct {
	Entries []PeriodEntry
}

func (PeriodSchedule) Mode() ScheduleMode { return ModePeriod }

func (s PeriodSchedule) Doses() []Dose {
	out := make([]Dose, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = Dose{Period: e.Label, Time: e.Time}
	}
	return out
}

// NewExactSchedule validates times and builds an exact schedule.
func NewExactSchedule(times []ClockTime) (ExactSchedule, error) {
	if err := checkTimes(times); err != nil {
		return ExactSchedule{}, err
	}
	return ExactSchedule{Times: append([]ClockTime(nil), times...)}, nil
}

// NewPeriodSchedule builds a period schedule from preset keys, using each
// preset's time.
func NewPeriodSchedule(keys []string) (PeriodSchedule, error) {
	entries := make([]PeriodEntry, 0, len(keys))
	times := make([]ClockTime, 0, len(keys))
	for _, k := range keys {
		p, ok := PeriodByKey(k)
		if !ok {
			return PeriodSchedule{}, fmt.Errorf("%w: unknown period %q", ErrInvalidSchedule, k)
		}
		entries = append(entries, PeriodEntry{Label: p.Key, Time: p.Time})
		times = append(times, p.Time)
	}
	if err := checkTimes(times); err != nil {
		return PeriodSchedule{}, err
	}
	return PeriodSchedule{Entries: entries}, nil
}

// ValidateSchedule rejects a nil schedule, one without doses, and one with
// two doses at the same clock time.
func ValidateSchedule(s Schedule) error {
	if s == nil {
		return fmt.Errorf("%w: no schedule", ErrInvalidSchedule)
	}
	doses := s.Doses()
	times := make([]ClockTime, len(doses))
	for i, d := range doses {
		times[i] = d.Time
	}
	return checkTimes(times)
}

func checkTimes(times []ClockTime) error {
	if len(times) == 0 {
		return fmt.Errorf("%w: at least one time is required", ErrInvalidSchedule)
	}
	seen := make(map[int]struct{}, len(times))
	for _, t := range times {
		if _, dup := seen[t.Minutes()]; dup {
			return fmt.Errorf("%w: duplicate time %s", ErrInvalidSchedule, t)
		}
		seen[t.Minutes()] = struct{}{}
	}
	return nil
}

// DecodeSchedule rebuilds a Schedule from its persisted columns.
func DecodeSchedule(mode ScheduleMode, times, periods []string) (Schedule, error) {
	parsed := make([]ClockTime, 0, len(times))
	for _, s := range times {
		t, err := ParseClockTime(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, t)
	}
	switch mode {
	case ModePeriod:
		if len(periods) != len(parsed) {
			return nil, fmt.Errorf("%w: %d periods for %d times", ErrInvalidSchedule, len(periods), len(parsed))
		}
		entries := make([]PeriodEntry, len(parsed))
		for i := range parsed {
			entries[i] = PeriodEntry{Label: periods[i], Time: parsed[i]}
		}
		return PeriodSchedule{Entries: entries}, nil
	case ModeExact, "":
		return ExactSchedule{Times: parsed}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidSchedule, mode)
	}
}

// EncodeSchedule splits a Schedule into its persisted columns.
// periods is nil for exact schedules.
func EncodeSchedule(s Schedule) (mode ScheduleMode, times, periods []string) {
	doses := s.Doses()
	times = make([]string, len(doses))
	for i, d := range doses {
		times[i] = d.Time.String()
	}
	if s.Mode() == ModePeriod {
		periods = make([]string, len(doses))
		for i, d := range doses {
			periods[i] = d.Period
		}
	}
	return s.Mode(), times, periods
}

// FormatSchedule renders a schedule like "08:00, 20:00" or
// "Morning (08:00), Evening (20:00)".
func FormatSchedule(s Schedule) string {
	if s == nil {
		return "—"
	}
	doses := s.Doses()
	if len(doses) == 0 {
		return "—"
	}
	parts := make([]string, len(doses))
	for i, d := range doses {
		if p, ok := PeriodByKey(d.Period); ok {
			parts[i] = fmt.Sprintf("%s (%s)", p.Title, d.Time)
			continue
		}
		parts[i] = d.Time.String()
	}
	return strings.Join(parts, ", ")
}

// Medication is a recurring dosing course owned by one user.
type Medication struct {
	ID          int64
	UserID      int64
	Name        string
	Schedule    Schedule
	DosesPerDay int
	Active      bool
	PausedUntil *time.Time // UTC, only meaningful while inactive
	CreatedAt   time.Time
}
