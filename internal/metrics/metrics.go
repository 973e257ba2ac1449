package metrics

import "sync/atomic"

// Metrics aggregates process-lifetime counters. The zero value is ready to use.
type Metrics struct {
	remindersSent   atomic.Int64
	remindersFailed atomic.Int64
	intakesMarked   atomic.Int64
	snoozes         atomic.Int64
	skips           atomic.Int64
	missed          atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	RemindersSent   int64
	RemindersFailed int64
	IntakesMarked   int64
	Snoozes         int64
	Skips           int64
	Missed          int64
}

func New() *Metrics { return &Metrics{} }

func (m *Metrics) ReminderSent()   { m.remindersSent.Add(1) }
func (m *Metrics) ReminderFailed() { m.remindersFailed.Add(1) }
func (m *Metrics) IntakeMarked()   { m.intakesMarked.Add(1) }
func (m *Metrics) Snoozed()        { m.snoozes.Add(1) }
func (m *Metrics) Skipped()        { m.skips.Add(1) }

// AddMissed adds n missed doses; non-positive n is ignored.
func (m *Metrics) AddMissed(n int) {
	if n > 0 {
		m.missed.Add(int64(n))
	}
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RemindersSent:   m.remindersSent.Load(),
		RemindersFailed: m.remindersFailed.Load(),
		IntakesMarked:   m.intakesMarked.Load(),
		Snoozes:         m.snoozes.Load(),
		Skips:           m.skips.Load(),
		Missed:          m.missed.Load(),
	}
}
