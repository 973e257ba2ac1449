package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
)

// Repo defines storage operations for users, medications and intakes.
// Lookups of missing rows return domain.ErrNotFound.
type Repo interface {
	// EnsureUser inserts u keyed by ExternalID unless it exists, and returns the stored row.
	EnsureUser(ctx context.Context, u domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByExternalID(ctx context.Context, externalID int64) (*domain.User, error)
	SetUserTimezone(ctx context.Context, id int64, tz string) error
	SetUserLead(ctx context.Context, id int64, minutes int) error
	SetUserLanguage(ctx context.Context, id int64, lang string) error
	SetLastSummaryDate(ctx context.Context, id int64, d domain.Date) error
	UsersWithAnyMedication(ctx context.Context) ([]domain.User, error)

	CreateMedication(ctx context.Context, m *domain.Medication) error
	GetMedication(ctx context.Context, id int64) (*domain.Medication, error)
	ListMedications(ctx context.Context, userID int64, includeInactive bool) ([]domain.Medication, error)
	ActiveMedications(ctx context.Context) ([]domain.Medication, error)
	DueForAutoResume(ctx context.Context, now time.Time) ([]domain.Medication, error)
	ReplaceSchedule(ctx context.Context, id int64, s domain.Schedule) error
	// SetMedicationActive activates (clearing paused_until) or pauses a medication.
	// Activation only applies to an inactive row; changed reports whether a row was updated.
	SetMedicationActive(ctx context.Context, id int64, active bool, pausedUntil *time.Time) (changed bool, err error)
	DeleteMedication(ctx context.Context, id int64) error

	GetIntake(ctx context.Context, id int64) (*domain.Intake, error)
	// GetOrCreateIntake atomically inserts the (medication, scheduledAt) row seeded with
	// defaultReminderAt, or returns the existing one, backfilling next_reminder_at on a
	// fully untouched row.
	GetOrCreateIntake(ctx context.Context, medID int64, scheduledAt time.Time, defaultReminderAt *time.Time) (*domain.Intake, error)
	IntakesForLocalDay(ctx context.Context, medID int64, d domain.Date, loc *time.Location) ([]domain.Intake, error)
	// UpdateIntake writes next only if the stored row still matches prev.
	UpdateIntake(ctx context.Context, prev, next domain.Intake) (applied bool, err error)
	ClearFutureUntakenIntakes(ctx context.Context, medID int64, from time.Time) (int64, error)

	Close() error
}

// SQLRepo implements Repo on top of database/sql.
type SQLRepo struct {
	pool *Pool
	now  func() time.Time
}

var _ Repo = (*SQLRepo)(nil)

// Open connects to the database described by opts, runs migrations and
// returns a repository.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*SQLRepo, error) {
	pool, err := OpenPool(ctx, opts, log)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, pool.current(), opts.Driver, log); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLRepo{pool: pool, now: time.Now}, nil
}

// Close releases the underlying database resources.
func (r *SQLRepo) Close() error {
	return r.pool.Close()
}

func (r *SQLRepo) q(query string) string { return r.pool.dialect.rebind(query) }
