package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/messages"
)

// summaryTick sends each user's daily summary once per local day, after the
// configured hour. The day is recorded only after a successful delivery.
func (s *Scheduler) summaryTick(ctx context.Context, log *zap.Logger) error {
	now := s.now()
	users, err := s.repo.UsersWithAnyMedication(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		u := &users[i]
		loc := s.zones.ForUser(u)
		local := now.In(loc)
		if local.Hour() < s.summaryHour {
			continue
		}
		today := domain.DateOf(local)
		if u.LastSummaryDate == today {
			continue
		}
		sent, err := s.sendSummary(ctx, log, u, today, loc)
		if err != nil {
			log.Error("summary failed", zap.Int64("user_id", u.ID), zap.Error(err))
			continue
		}
		if !sent {
			continue
		}
		if err := s.repo.SetLastSummaryDate(ctx, u.ID, today); err != nil {
			log.Error("record summary date failed", zap.Int64("user_id", u.ID), zap.Error(err))
		}
	}
	return nil
}

// SendNow delivers today's summary on request. It does not mark the day as done.
func (s *Scheduler) SendNow(ctx context.Context, u *domain.User) (bool, error) {
	loc := s.zones.ForUser(u)
	return s.sendSummary(ctx, s.log, u, domain.LocalDate(loc, s.now()), loc)
}

// sendSummary composes and delivers the summary for day. It reports false
// without error when the user has no intakes that day.
func (s *Scheduler) sendSummary(ctx context.Context, log *zap.Logger, u *domain.User, day domain.Date, loc *time.Location) (bool, error) {
	lines, err := s.composeSummary(ctx, u, day, loc)
	if err != nil {
		return false, err
	}
	if len(lines) == 0 {
		return false, nil
	}
	for _, l := range lines {
		s.metrics.AddMissed(l.Missed())
	}

	msg := Message{Text: messages.For(u.Language).Summary(day, lines), Lang: u.Language}
	if err := s.notifier.Deliver(ctx, u.ExternalID, msg); err != nil {
		s.alerter.Alert(ctx, messages.For("").AlertSummary(u.ID))
		return false, fmt.Errorf("deliver summary: %w", err)
	}
	log.Info("summary sent", zap.Int64("user_id", u.ID), zap.String("date", day.String()))
	return true, nil
}

func (s *Scheduler) composeSummary(ctx context.Context, u *domain.User, day domain.Date, loc *time.Location) ([]messages.SummaryLine, error) {
	meds, err := s.repo.ListMedications(ctx, u.ID, true)
	if err != nil {
		return nil, err
	}
	var lines []messages.SummaryLine
	for _, m := range meds {
		intakes, err := s.repo.IntakesForLocalDay(ctx, m.ID, day, loc)
		if err != nil {
			return nil, err
		}
		if len(intakes) == 0 {
			continue
		}
		line := messages.SummaryLine{Name: m.Name, Total: len(intakes)}
		for _, in := range intakes {
			if in.Taken {
				line.Taken++
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}
