package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/messages"
	"github.com/AndreyMartjushev/takingPills/internal/tracker"
)

// lookaheadDays is how many days past today get their intakes materialized.
const lookaheadDays = 1

// reminderTick resumes expired pauses, then materializes intakes for today and
// tomorrow and delivers the reminders that are due.
func (s *Scheduler) reminderTick(ctx context.Context, log *zap.Logger) error {
	now := s.now().UTC()
	users := make(map[int64]*domain.User)

	if err := s.autoResume(ctx, log, now, users); err != nil {
		log.Error("auto-resume failed", zap.Error(err))
	}

	meds, err := s.repo.ActiveMedications(ctx)
	if err != nil {
		return fmt.Errorf("list active medications: %w", err)
	}
	for _, med := range meds {
		u, err := s.user(ctx, users, med.UserID)
		if err != nil {
			log.Error("load owner failed", zap.Int64("med_id", med.ID), zap.Error(err))
			continue
		}
		if err := s.driveMedication(ctx, log, u, med, now); err != nil {
			log.Error("medication tick failed", zap.Int64("med_id", med.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) user(ctx context.Context, cache map[int64]*domain.User, id int64) (*domain.User, error) {
	if u, ok := cache[id]; ok {
		return u, nil
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = u
	return u, nil
}

// autoResume reactivates medications whose pause has ended.
func (s *Scheduler) autoResume(ctx context.Context, log *zap.Logger, now time.Time, users map[int64]*domain.User) error {
	due, err := s.repo.DueForAutoResume(ctx, now)
	if err != nil {
		return err
	}
	for _, med := range due {
		changed, err := tracker.ResumeMedication(ctx, s.repo, log, med.ID, now)
		if err != nil {
			log.Error("resume failed", zap.Int64("med_id", med.ID), zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		u, err := s.user(ctx, users, med.UserID)
		if err != nil {
			log.Error("load owner failed", zap.Int64("med_id", med.ID), zap.Error(err))
			continue
		}
		msg := Message{Text: messages.For(u.Language).Resumed(med.Name), Lang: u.Language}
		if err := s.notifier.Deliver(ctx, u.ExternalID, msg); err != nil {
			log.Warn("resume notice not delivered",
				zap.Int64("med_id", med.ID), zap.Int64("user_id", u.ID), zap.Error(err))
		}
	}
	return nil
}

// driveMedication ensures intakes exist for today and tomorrow and fires
// today's due reminders. Tomorrow's rows are created but never fired early.
func (s *Scheduler) driveMedication(ctx context.Context, log *zap.Logger, u *domain.User, med domain.Medication, now time.Time) error {
	loc := s.zones.ForUser(u)
	lead := u.Lead(s.lead)
	today := domain.LocalDate(loc, now)

	for offset := 0; offset <= lookaheadDays; offset++ {
		day := today.AddDays(offset)
		for _, dose := range med.Schedule.Doses() {
			at := domain.ToAbsolute(day, dose.Time, loc)
			def := at.Add(-lead)
			if offset == 0 && def.Before(now) {
				def = now
			}
			in, err := s.repo.GetOrCreateIntake(ctx, med.ID, at, &def)
			if err != nil {
				return fmt.Errorf("intake at %s: %w", at.Format(time.RFC3339), err)
			}
			if offset > 0 || !in.Due(now) {
				continue
			}
			s.deliverReminder(ctx, log, u, med, *in, domain.LocalClock(at, loc), now)
		}
	}
	return nil
}

// deliverReminder sends one reminder. A failed delivery leaves the row as is,
// so it is attempted again on the next tick.
func (s *Scheduler) deliverReminder(ctx context.Context, log *zap.Logger, u *domain.User, med domain.Medication, in domain.Intake, local domain.ClockTime, now time.Time) {
	fields := []zap.Field{
		zap.Int64("med_id", med.ID),
		zap.Int64("intake_id", in.ID),
		zap.Int64("user_id", u.ID),
	}
	msg := Message{
		Text:     messages.For(u.Language).Reminder(med.Name, local),
		Lang:     u.Language,
		IntakeID: in.ID,
	}
	if err := s.notifier.Deliver(ctx, u.ExternalID, msg); err != nil {
		s.metrics.ReminderFailed()
		log.Error("reminder not delivered", append(fields, zap.Error(err))...)
		s.alerter.Alert(ctx, messages.For("").AlertDelivery(u.ID))
		return
	}
	s.metrics.ReminderSent()

	next, err := domain.MarkReminded(in, now)
	if err != nil {
		log.Warn("reminder delivered but intake not marked", append(fields, zap.Error(err))...)
		return
	}
	applied, err := s.repo.UpdateIntake(ctx, in, next)
	switch {
	case err != nil:
		log.Error("mark reminded failed", append(fields, zap.Error(err))...)
	case !applied:
		log.Info("intake changed during delivery, keeping newer state", fields...)
	default:
		log.Info("reminder sent", fields...)
	}
}
