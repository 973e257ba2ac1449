package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.May, 5, 9, 5, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestIntakeState(t *testing.T) {
	future := ptr(now.Add(time.Hour))
	cases := []struct {
		in   Intake
		want IntakeState
	}{
		{Intake{}, StateUpcoming},
		{Intake{NextReminderAt: future}, StateUpcoming},
		{Intake{ReminderSent: true}, StateAwaitingAck},
		{Intake{ReminderSent: true, NextReminderAt: future}, StateSnoozed},
		{Intake{RemindersPaused: true}, StateSkipped},
		{Intake{Taken: true, RemindersPaused: true}, StateTaken},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.in.State(), c.want.String())
	}
}

func TestAcknowledge(t *testing.T) {
	in := Intake{ID: 1, ReminderSent: true, NextReminderAt: ptr(now)}
	got, err := Acknowledge(in, now)
	require.NoError(t, err)
	assert.True(t, got.Taken)
	assert.Equal(t, now, *got.TakenAt)
	assert.Nil(t, got.NextReminderAt)

	again, err := Acknowledge(got, now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyTaken)
	assert.Equal(t, got, again)
}

func TestSnoozeOverridesSkip(t *testing.T) {
	skipped, err := Skip(Intake{ReminderSent: true})
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, skipped.State())
	assert.Nil(t, skipped.NextReminderAt)

	snoozed, err := Snooze(skipped, now, 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, snoozed.RemindersPaused)
	assert.Equal(t, now.Add(15*time.Minute), *snoozed.NextReminderAt)
	assert.Equal(t, StateSnoozed, snoozed.State())
}

func TestSkippedCanStillBeTaken(t *testing.T) {
	skipped, err := Skip(Intake{})
	require.NoError(t, err)
	taken, err := Acknowledge(skipped, now)
	require.NoError(t, err)
	assert.Equal(t, StateTaken, taken.State())
}

func TestTransitionsRejectTaken(t *testing.T) {
	taken := Intake{Taken: true}
	_, err := Snooze(taken, now, time.Minute)
	assert.ErrorIs(t, err, ErrAlreadyTaken)
	_, err = Skip(taken)
	assert.ErrorIs(t, err, ErrAlreadyTaken)
	_, err = MarkReminded(taken, now)
	assert.ErrorIs(t, err, ErrAlreadyTaken)
}

func TestDue(t *testing.T) {
	assert.False(t, Intake{}.Due(now))
	assert.True(t, Intake{NextReminderAt: ptr(now)}.Due(now))
	assert.False(t, Intake{NextReminderAt: ptr(now.Add(time.Second))}.Due(now))
	assert.False(t, Intake{NextReminderAt: ptr(now), RemindersPaused: true}.Due(now))
	assert.False(t, Intake{NextReminderAt: ptr(now), Taken: true}.Due(now))
}

func TestMarkReminded(t *testing.T) {
	got, err := MarkReminded(Intake{NextReminderAt: ptr(now)}, now)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)
	assert.Nil(t, got.NextReminderAt)
	assert.Equal(t, now, *got.LastReminderAt)
	assert.Equal(t, StateAwaitingAck, got.State())
	assert.False(t, got.Untouched())
}
