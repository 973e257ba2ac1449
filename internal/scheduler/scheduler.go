package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/messages"
	"github.com/AndreyMartjushev/takingPills/internal/metrics"
	"github.com/AndreyMartjushev/takingPills/internal/store"
)

// Message is an outbound notification.
type Message struct {
	Text string
	Lang string
	// IntakeID, when non-zero, attaches take / snooze / skip actions for that intake.
	IntakeID int64
}

// Notifier delivers a message to a user identified by the external (chat) id.
// telegram.Router implements this.
type Notifier interface {
	Deliver(ctx context.Context, externalID int64, msg Message) error
}

// Alerter forwards operator alerts. Failures are the implementation's concern.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

type nopAlerter struct{}

func (nopAlerter) Alert(context.Context, string) {}

// Options configures the periodic jobs.
type Options struct {
	LeadMinutes     int // default lead for users without a preference
	SummaryHour     int // local hour from which the daily summary is sent
	TickInterval    time.Duration
	SummaryInterval time.Duration
	Now             func() time.Time
}

// Scheduler drives reminders and daily summaries.
type Scheduler struct {
	repo     store.Repo
	zones    *domain.Zones
	metrics  *metrics.Metrics
	notifier Notifier
	alerter  Alerter
	log      *zap.Logger

	lead            int
	summaryHour     int
	tickInterval    time.Duration
	summaryInterval time.Duration
	now             func() time.Time
}

// New creates a new Scheduler.
func New(repo store.Repo, zones *domain.Zones, m *metrics.Metrics, notifier Notifier, alerter Alerter, log *zap.Logger, opts Options) *Scheduler {
	if alerter == nil {
		alerter = nopAlerter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 30 * time.Second
	}
	if opts.SummaryInterval <= 0 {
		opts.SummaryInterval = time.Minute
	}
	return &Scheduler{
		repo:            repo,
		zones:           zones,
		metrics:         m,
		notifier:        notifier,
		alerter:         alerter,
		log:             log,
		lead:            domain.ClampLead(opts.LeadMinutes),
		summaryHour:     opts.SummaryHour,
		tickInterval:    opts.TickInterval,
		summaryInterval: opts.SummaryInterval,
		now:             opts.Now,
	}
}

// Run starts both jobs and blocks until ctx is canceled. Running jobs are
// allowed to finish before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{s.log.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(every(s.tickInterval), s.job(ctx, "reminders", s.reminderTick)); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	if _, err := c.AddFunc(every(s.summaryInterval), s.job(ctx, "summary", s.summaryTick)); err != nil {
		return fmt.Errorf("schedule summary: %w", err)
	}

	c.Start()
	s.log.Info("scheduler started",
		zap.Duration("tick", s.tickInterval),
		zap.Duration("summary", s.summaryInterval),
	)
	<-ctx.Done()
	s.log.Info("scheduler stopping")
	<-c.Stop().Done()
	return nil
}

func every(d time.Duration) string { return "@every " + d.String() }

// job wraps a tick with a run id, error logging and panic recovery, so a
// failing run is reported and the next one still fires.
func (s *Scheduler) job(ctx context.Context, name string, fn func(context.Context, *zap.Logger) error) func() {
	return func() {
		log := s.log.With(zap.String("job", name), zap.String("run_id", uuid.NewString()))
		defer func() {
			if r := recover(); r != nil {
				log.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
				s.alerter.Alert(ctx, messages.For("").AlertJob(name, r))
			}
		}()
		start := time.Now()
		if err := fn(ctx, log); err != nil {
			log.Error("job failed", zap.Error(err))
			s.alerter.Alert(ctx, messages.For("").AlertJob(name, err))
			return
		}
		log.Debug("job finished", zap.Duration("took", time.Since(start)))
	}
}

// ReminderTick runs one reminder cycle immediately.
func (s *Scheduler) ReminderTick(ctx context.Context) error {
	return s.reminderTick(ctx, s.log.With(zap.String("run_id", uuid.NewString())))
}

// SummaryTick runs one summary cycle immediately.
func (s *Scheduler) SummaryTick(ctx context.Context) error {
	return s.summaryTick(ctx, s.log.With(zap.String("run_id", uuid.NewString())))
}
