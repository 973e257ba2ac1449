package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/metrics"
	"github.com/AndreyMartjushev/takingPills/internal/store"
)

var now = time.Date(2025, time.May, 5, 9, 5, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    store.Repo
	metrics *metrics.Metrics
	user    *domain.User
	med     *domain.Medication
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	repo, err := store.Open(ctx, store.Options{Driver: store.DriverSQLite, DSN: filepath.Join(t.TempDir(), "t.db")}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	m := metrics.New()
	svc := New(repo, domain.NewZones("UTC", log), m, log, Options{
		SnoozeMinutes: 15,
		LeadMinutes:   10,
		Now:           func() time.Time { return now },
	})
	u, err := svc.EnsureUser(ctx, 100, "Ann", "ru")
	require.NoError(t, err)

	sched, err := domain.NewExactSchedule([]domain.ClockTime{domain.MustClockTime("09:00"), domain.MustClockTime("21:00")})
	require.NoError(t, err)
	med, err := svc.AddMedication(ctx, u.ID, " Aspirin ", sched)
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, metrics: m, user: u, med: med}
}

func (f *fixture) intake(t *testing.T, clock string) *domain.Intake {
	t.Helper()
	at := domain.ToAbsolute(domain.DateOf(now), domain.MustClockTime(clock), time.UTC)
	def := at.Add(-10 * time.Minute)
	in, err := f.repo.GetOrCreateIntake(context.Background(), f.med.ID, at, &def)
	require.NoError(t, err)
	return in
}

func TestAcknowledge_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.intake(t, "09:00")

	got, err := f.svc.Acknowledge(ctx, in.ID)
	require.NoError(t, err)
	assert.True(t, got.Taken)
	assert.Nil(t, got.NextReminderAt)

	_, err = f.svc.Acknowledge(ctx, in.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyTaken)

	stored, err := f.repo.GetIntake(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, *got, *stored)
	assert.EqualValues(t, 1, f.metrics.Snapshot().IntakesMarked)

	_, err = f.svc.Snooze(ctx, in.ID, 10)
	assert.ErrorIs(t, err, domain.ErrAlreadyTaken)
	_, err = f.svc.Skip(ctx, in.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyTaken)
}

func TestSnooze_AfterSkip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.intake(t, "09:00")

	skipped, err := f.svc.Skip(ctx, in.ID)
	require.NoError(t, err)
	assert.True(t, skipped.RemindersPaused)
	assert.Nil(t, skipped.NextReminderAt)

	snoozed, err := f.svc.Snooze(ctx, in.ID, 30)
	require.NoError(t, err)
	assert.False(t, snoozed.RemindersPaused)
	require.NotNil(t, snoozed.NextReminderAt)
	assert.Equal(t, now.Add(30*time.Minute), *snoozed.NextReminderAt)
	assert.True(t, snoozed.NextReminderAt.After(now))

	// Default delay.
	snoozed, err = f.svc.Snooze(ctx, in.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), *snoozed.NextReminderAt)

	s := f.metrics.Snapshot()
	assert.EqualValues(t, 1, s.Skips)
	assert.EqualValues(t, 2, s.Snoozes)
}

func TestActions_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Acknowledge(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Snooze(ctx, 12345, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Skip(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// losingRepo reports every conditional write as lost.
type losingRepo struct {
	store.Repo
	attempts int
}

func (r *losingRepo) UpdateIntake(context.Context, domain.Intake, domain.Intake) (bool, error) {
	r.attempts++
	return false, nil
}

func TestAcknowledge_ConflictIsBounded(t *testing.T) {
	f := newFixture(t)
	in := f.intake(t, "09:00")

	lr := &losingRepo{Repo: f.repo}
	f.svc.repo = lr
	_, err := f.svc.Acknowledge(context.Background(), in.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, maxAttempts, lr.attempts)
	assert.Zero(t, f.metrics.Snapshot().IntakesMarked)
}

func TestAcknowledgeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	morning := f.intake(t, "09:00")
	f.intake(t, "21:00")

	_, err := f.svc.Acknowledge(ctx, morning.ID)
	require.NoError(t, err)

	n, err := f.svc.AcknowledgeAll(ctx, f.med.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.AcknowledgeAll(ctx, f.med.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	day, progress, err := f.svc.Today(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, domain.DateOf(now), day)
	require.Len(t, progress, 1)
	assert.Equal(t, 2, progress[0].Taken())
}

func TestIntake_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.intake(t, "21:00")

	view, err := f.svc.Intake(ctx, f.user.ID, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", view.Medication.Name)
	assert.Equal(t, domain.MustClockTime("21:00"), view.LocalTime)

	other, err := f.svc.EnsureUser(ctx, 200, "Eve", "en")
	require.NoError(t, err)
	_, err = f.svc.Intake(ctx, other.ID, in.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.intake(t, "21:00")

	until, err := f.svc.Pause(ctx, f.med.ID, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour), until)

	med, err := f.repo.GetMedication(ctx, f.med.ID)
	require.NoError(t, err)
	assert.False(t, med.Active)

	changed, err := f.svc.Resume(ctx, f.med.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.svc.Resume(ctx, f.med.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	intakes, err := f.repo.IntakesForLocalDay(ctx, f.med.ID, domain.DateOf(now), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, intakes, "future untaken intakes are cleared on resume")
}

func TestEditSchedule_ClearsFutureOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := f.intake(t, "09:00") // 09:00 is before now (09:05)
	f.intake(t, "21:00")

	sched, err := domain.NewPeriodSchedule([]string{"evening"})
	require.NoError(t, err)
	require.NoError(t, f.svc.EditSchedule(ctx, f.med.ID, sched))

	intakes, err := f.repo.IntakesForLocalDay(ctx, f.med.ID, domain.DateOf(now), time.UTC)
	require.NoError(t, err)
	require.Len(t, intakes, 1)
	assert.Equal(t, past.ID, intakes[0].ID)

	med, err := f.repo.GetMedication(ctx, f.med.ID)
	require.NoError(t, err)
	assert.Equal(t, sched, med.Schedule)
}

func TestAddMedication_Validation(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Aspirin", f.med.Name)
	assert.Equal(t, 2, f.med.DosesPerDay)

	_, err := f.svc.AddMedication(context.Background(), f.user.ID, "  ", f.med.Schedule)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	dup := domain.ExactSchedule{Times: []domain.ClockTime{domain.MustClockTime("08:00"), domain.MustClockTime("08:00")}}
	_, err = f.svc.AddMedication(context.Background(), f.user.ID, "Zinc", dup)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
}

func TestEditSchedule_RejectsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, sched := range map[string]domain.Schedule{
		"nil":   nil,
		"empty": domain.ExactSchedule{},
		"duplicate": domain.ExactSchedule{Times: []domain.ClockTime{
			domain.MustClockTime("21:00"), domain.MustClockTime("21:00"),
		}},
	} {
		err := f.svc.EditSchedule(ctx, f.med.ID, sched)
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule, name)
	}

	med, err := f.repo.GetMedication(ctx, f.med.ID)
	require.NoError(t, err)
	assert.Equal(t, f.med.Schedule, med.Schedule, "stored schedule unchanged")
}

func TestPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetTimezone(ctx, f.user.ID, "Mars/Base")
	assert.ErrorIs(t, err, domain.ErrInvalidZone)
	tz, err := f.svc.SetTimezone(ctx, f.user.ID, " Asia/Almaty ")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Almaty", tz)

	lead, err := f.svc.SetLead(ctx, f.user.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLeadMinutes, lead)

	lang, err := f.svc.SetLanguage(ctx, f.user.ID, "en-US")
	require.NoError(t, err)
	assert.Equal(t, "en", lang)

	u, err := f.repo.GetUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Almaty", u.TZ)
	assert.Equal(t, domain.MaxLeadMinutes, u.LeadMinutes)
	assert.Equal(t, "en", u.Language)
	assert.Equal(t, 10, f.user.LeadMinutes)
}
