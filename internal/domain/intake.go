package domain

import (
	"fmt"
	"time"
)

// Intake is one dated occurrence of one dose of a medication.
type Intake struct {
	ID              int64
	MedicationID    int64
	ScheduledAt     time.Time // UTC
	Taken           bool
	TakenAt         *time.Time // UTC, nullable
	RemindersPaused bool
	ReminderSent    bool
	NextReminderAt  *time.Time // UTC, nullable: no reminder pending
	LastReminderAt  *time.Time // UTC, nullable
}

// IntakeState is the derived reminder state of an intake.
type IntakeState int

const (
	StateUpcoming IntakeState = iota
	StateAwaitingAck
	StateSnoozed
	StateSkipped
	StateTaken
)

func (s IntakeState) String() string {
	switch s {
	case StateUpcoming:
		return "upcoming"
	case StateAwaitingAck:
		return "awaiting_ack"
	case StateSnoozed:
		return "snoozed"
	case StateSkipped:
		return "skipped"
	case StateTaken:
		return "taken"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// State derives the state from the stored flags.
// A sent reminder with a new pending instant is a snooze.
func (in Intake) State() IntakeState {
	switch {
	case in.Taken:
		return StateTaken
	case in.RemindersPaused:
		return StateSkipped
	case in.ReminderSent && in.NextReminderAt != nil:
		return StateSnoozed
	case in.ReminderSent:
		return StateAwaitingAck
	default:
		return StateUpcoming
	}
}

// Untouched reports whether nothing has happened to the intake yet.
func (in Intake) Untouched() bool {
	return !in.Taken && !in.RemindersPaused && !in.ReminderSent && in.NextReminderAt == nil
}

// Due reports whether a reminder should be attempted at now.
func (in Intake) Due(now time.Time) bool {
	if in.Taken || in.RemindersPaused || in.NextReminderAt == nil {
		return false
	}
	return !now.Before(*in.NextReminderAt)
}

// Acknowledge marks the intake taken and stops reminders for it.
func Acknowledge(in Intake, now time.Time) (Intake, error) {
	if in.Taken {
		return in, ErrAlreadyTaken
	}
	at := now.UTC()
	in.Taken = true
	in.TakenAt = &at
	in.NextReminderAt = nil
	return in, nil
}

// Snooze schedules another reminder after d. A snooze overrides a skip.
func Snooze(in Intake, now time.Time, d time.Duration) (Intake, error) {
	if in.Taken {
		return in, ErrAlreadyTaken
	}
	next := now.UTC().Add(d)
	in.NextReminderAt = &next
	in.RemindersPaused = false
	return in, nil
}

// Skip stops automatic reminders; the intake can still be acknowledged later.
func Skip(in Intake) (Intake, error) {
	if in.Taken {
		return in, ErrAlreadyTaken
	}
	in.RemindersPaused = true
	in.NextReminderAt = nil
	return in, nil
}

// MarkReminded records a successful delivery and clears the pending reminder.
func MarkReminded(in Intake, now time.Time) (Intake, error) {
	if in.Taken {
		return in, ErrAlreadyTaken
	}
	at := now.UTC()
	in.ReminderSent = true
	in.LastReminderAt = &at
	in.NextReminderAt = nil
	return in, nil
}
