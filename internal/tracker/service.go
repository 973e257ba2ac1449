// Package tracker implements user-triggered operations: intake actions,
// course management and preferences.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/messages"
	"github.com/AndreyMartjushev/takingPills/internal/metrics"
	"github.com/AndreyMartjushev/takingPills/internal/store"
)

// maxAttempts bounds the read-evaluate-write loop of an intake action.
const maxAttempts = 3

// Options carries the defaults applied to user actions.
type Options struct {
	SnoozeMinutes int
	LeadMinutes   int
	Now           func() time.Time
}

// Service is the entry point for actions coming from users.
type Service struct {
	repo    store.Repo
	zones   *domain.Zones
	metrics *metrics.Metrics
	log     *zap.Logger

	snooze time.Duration
	lead   int
	now    func() time.Time
}

func New(repo store.Repo, zones *domain.Zones, m *metrics.Metrics, log *zap.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SnoozeMinutes <= 0 {
		opts.SnoozeMinutes = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		zones:   zones,
		metrics: m,
		log:     log,
		snooze:  time.Duration(opts.SnoozeMinutes) * time.Minute,
		lead:    domain.ClampLead(opts.LeadMinutes),
		now:     opts.Now,
	}
}

// mutate re-reads the intake, applies fn and writes the result with a
// compare-and-set, retrying when a concurrent writer got there first.
func (s *Service) mutate(ctx context.Context, op string, id int64, fn func(domain.Intake, time.Time) (domain.Intake, error)) (*domain.Intake, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cur, err := s.repo.GetIntake(ctx, id)
		if err != nil {
			return nil, err
		}
		next, err := fn(*cur, s.now())
		if err != nil {
			return cur, err
		}
		applied, err := s.repo.UpdateIntake(ctx, *cur, next)
		if err != nil {
			return nil, fmt.Errorf("%s intake %d: %w", op, id, err)
		}
		if applied {
			return &next, nil
		}
		s.log.Debug("intake changed concurrently, retrying",
			zap.String("op", op), zap.Int64("intake_id", id), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%s intake %d: %w", op, id, domain.ErrConflict)
}

// Acknowledge marks the intake taken.
func (s *Service) Acknowledge(ctx context.Context, id int64) (*domain.Intake, error) {
	in, err := s.mutate(ctx, "acknowledge", id, domain.Acknowledge)
	if err != nil {
		return in, err
	}
	s.metrics.IntakeMarked()
	s.log.Info("intake taken", zap.Int64("intake_id", id))
	return in, nil
}

// Snooze postpones the reminder by minutes; non-positive minutes use the default.
func (s *Service) Snooze(ctx context.Context, id int64, minutes int) (*domain.Intake, error) {
	d := s.snooze
	if minutes > 0 {
		d = time.Duration(minutes) * time.Minute
	}
	in, err := s.mutate(ctx, "snooze", id, func(in domain.Intake, now time.Time) (domain.Intake, error) {
		return domain.Snooze(in, now, d)
	})
	if err != nil {
		return in, err
	}
	s.metrics.Snoozed()
	s.log.Info("intake snoozed", zap.Int64("intake_id", id), zap.Duration("for", d))
	return in, nil
}

// Skip stops automatic reminders for the intake.
func (s *Service) Skip(ctx context.Context, id int64) (*domain.Intake, error) {
	in, err := s.mutate(ctx, "skip", id, func(in domain.Intake, _ time.Time) (domain.Intake, error) {
		return domain.Skip(in)
	})
	if err != nil {
		return in, err
	}
	s.metrics.Skipped()
	s.log.Info("intake skipped", zap.Int64("intake_id", id))
	return in, nil
}

// AcknowledgeAll marks every untaken intake of the medication for the
// owner's local today. It returns how many were marked by this call.
func (s *Service) AcknowledgeAll(ctx context.Context, medID int64) (int, error) {
	med, err := s.repo.GetMedication(ctx, medID)
	if err != nil {
		return 0, err
	}
	user, err := s.repo.GetUser(ctx, med.UserID)
	if err != nil {
		return 0, err
	}
	loc := s.zones.ForUser(user)
	intakes, err := s.repo.IntakesForLocalDay(ctx, medID, domain.LocalDate(loc, s.now()), loc)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, in := range intakes {
		if in.Taken {
			continue
		}
		_, err := s.Acknowledge(ctx, in.ID)
		switch {
		case errors.Is(err, domain.ErrAlreadyTaken):
			continue
		case err != nil:
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// IntakeView is an intake together with its medication and local time.
type IntakeView struct {
	Intake     domain.Intake
	Medication domain.Medication
	LocalTime  domain.ClockTime
}

// Intake loads an intake owned by userID. Intakes of other users are
// reported as not found.
func (s *Service) Intake(ctx context.Context, userID, intakeID int64) (*IntakeView, error) {
	in, err := s.repo.GetIntake(ctx, intakeID)
	if err != nil {
		return nil, err
	}
	med, err := s.Medication(ctx, userID, in.MedicationID)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &IntakeView{
		Intake:     *in,
		Medication: *med,
		LocalTime:  domain.LocalClock(in.ScheduledAt, s.zones.ForUser(user)),
	}, nil
}

// Medication loads a medication owned by userID.
func (s *Service) Medication(ctx context.Context, userID, medID int64) (*domain.Medication, error) {
	med, err := s.repo.GetMedication(ctx, medID)
	if err != nil {
		return nil, err
	}
	if med.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return med, nil
}

// Medications lists all of the user's medications, paused ones included.
func (s *Service) Medications(ctx context.Context, userID int64) ([]domain.Medication, error) {
	return s.repo.ListMedications(ctx, userID, true)
}

// DayProgress is a medication with its intakes for one local day.
type DayProgress struct {
	Medication domain.Medication
	Intakes    []domain.Intake
}

// Taken counts the taken intakes.
func (p DayProgress) Taken() int {
	n := 0
	for _, in := range p.Intakes {
		if in.Taken {
			n++
		}
	}
	return n
}

// Today returns the progress of every medication of the user for the local today.
func (s *Service) Today(ctx context.Context, user *domain.User) (domain.Date, []DayProgress, error) {
	loc := s.zones.ForUser(user)
	day := domain.LocalDate(loc, s.now())
	meds, err := s.repo.ListMedications(ctx, user.ID, true)
	if err != nil {
		return day, nil, err
	}
	out := make([]DayProgress, 0, len(meds))
	for _, m := range meds {
		intakes, err := s.repo.IntakesForLocalDay(ctx, m.ID, day, loc)
		if err != nil {
			return day, nil, err
		}
		out = append(out, DayProgress{Medication: m, Intakes: intakes})
	}
	return day, out, nil
}

// AddMedication creates an active medication for the user.
func (s *Service) AddMedication(ctx context.Context, userID int64, name string, sched domain.Schedule) (*domain.Medication, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", domain.ErrInvalidSchedule)
	}
	if err := domain.ValidateSchedule(sched); err != nil {
		return nil, err
	}
	m := &domain.Medication{
		UserID:      userID,
		Name:        name,
		Schedule:    sched,
		DosesPerDay: len(sched.Doses()),
		Active:      true,
	}
	if err := s.repo.CreateMedication(ctx, m); err != nil {
		return nil, err
	}
	s.log.Info("medication added", zap.Int64("med_id", m.ID), zap.Int64("user_id", userID))
	return m, nil
}

// EditSchedule replaces the schedule and drops future untaken intakes so the
// next tick regenerates them.
func (s *Service) EditSchedule(ctx context.Context, medID int64, sched domain.Schedule) error {
	if err := domain.ValidateSchedule(sched); err != nil {
		return err
	}
	if err := s.repo.ReplaceSchedule(ctx, medID, sched); err != nil {
		return err
	}
	n, err := s.repo.ClearFutureUntakenIntakes(ctx, medID, s.now())
	if err != nil {
		return err
	}
	s.log.Info("schedule replaced", zap.Int64("med_id", medID), zap.Int64("cleared", n))
	return nil
}

// Pause deactivates the medication for d and returns the resume instant.
func (s *Service) Pause(ctx context.Context, medID int64, d time.Duration) (time.Time, error) {
	until := s.now().UTC().Add(d).Truncate(time.Second)
	if _, err := s.repo.SetMedicationActive(ctx, medID, false, &until); err != nil {
		return time.Time{}, err
	}
	s.log.Info("medication paused", zap.Int64("med_id", medID), zap.Time("until", until))
	return until, nil
}

// Resume reactivates a paused medication and drops its future untaken
// intakes. It reports false when the medication was already active.
func (s *Service) Resume(ctx context.Context, medID int64) (bool, error) {
	return ResumeMedication(ctx, s.repo, s.log, medID, s.now())
}

// Delete removes the medication and its intakes.
func (s *Service) Delete(ctx context.Context, medID int64) error {
	if err := s.repo.DeleteMedication(ctx, medID); err != nil {
		return err
	}
	s.log.Info("medication deleted", zap.Int64("med_id", medID))
	return nil
}

// EnsureUser returns the user for a chat, registering it with defaults.
func (s *Service) EnsureUser(ctx context.Context, externalID int64, firstName, lang string) (*domain.User, error) {
	return s.repo.EnsureUser(ctx, domain.User{
		ExternalID:  externalID,
		FirstName:   firstName,
		LeadMinutes: s.lead,
		Language:    messages.Match(lang),
	})
}

// SetTimezone validates and stores the user's zone.
func (s *Service) SetTimezone(ctx context.Context, userID int64, name string) (string, error) {
	tz, err := domain.ValidateZone(strings.TrimSpace(name))
	if err != nil {
		return "", err
	}
	return tz, s.repo.SetUserTimezone(ctx, userID, tz)
}

// SetLead stores the lead time clamped to the allowed range.
func (s *Service) SetLead(ctx context.Context, userID int64, minutes int) (int, error) {
	m := domain.ClampLead(minutes)
	return m, s.repo.SetUserLead(ctx, userID, m)
}

// SetLanguage stores the closest supported language.
func (s *Service) SetLanguage(ctx context.Context, userID int64, pref string) (string, error) {
	lang := messages.Match(pref)
	return lang, s.repo.SetUserLanguage(ctx, userID, lang)
}
