package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
)

const medicationCols = `id, user_id, name, schedule_mode, times, periods,
	doses_per_day, is_active, paused_until, created_at`

func scanMedication(s rowScanner) (*domain.Medication, error) {
	var (
		m         domain.Medication
		mode      string
		timesNS   sql.NullString
		periodsNS sql.NullString
		activeInt int
		pausedNS  sql.NullInt64
		createdAt int64
	)
	if err := s.Scan(
		&m.ID, &m.UserID, &m.Name, &mode, &timesNS, &periodsNS,
		&m.DosesPerDay, &activeInt, &pausedNS, &createdAt,
	); err != nil {
		return nil, err
	}
	times, err := decodeList(timesNS)
	if err != nil {
		return nil, fmt.Errorf("medication %d: times: %w", m.ID, err)
	}
	periods, err := decodeList(periodsNS)
	if err != nil {
		return nil, fmt.Errorf("medication %d: periods: %w", m.ID, err)
	}
	sched, err := domain.DecodeSchedule(domain.ScheduleMode(mode), times, periods)
	if err != nil {
		return nil, fmt.Errorf("medication %d: %w", m.ID, err)
	}
	m.Schedule = sched
	m.Active = activeInt != 0
	m.PausedUntil = fromNullInt64(pausedNS)
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &m, nil
}

func (r *SQLRepo) queryMedications(ctx context.Context, op, query string, args ...any) ([]domain.Medication, error) {
	var res []domain.Medication
	err := r.pool.do(ctx, op, func(db *sql.DB) error {
		res = res[:0]
		rows, err := db.QueryContext(ctx, r.q(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMedication(rows)
			if err != nil {
				return err
			}
			res = append(res, *m)
		}
		return rows.Err()
	})
	return res, err
}

// CreateMedication stores m and fills in its ID and CreatedAt.
func (r *SQLRepo) CreateMedication(ctx context.Context, m *domain.Medication) error {
	if m == nil || m.Schedule == nil {
		return errors.New("nil medication or schedule")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now().UTC().Truncate(time.Second)
	}
	mode, times, periods := domain.EncodeSchedule(m.Schedule)
	if m.DosesPerDay == 0 {
		m.DosesPerDay = len(times)
	}

	return r.pool.do(ctx, "CreateMedication", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, r.q(`
			INSERT INTO medications (
				user_id, name, schedule_mode, times, periods,
				doses_per_day, is_active, paused_until, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`),
			m.UserID, m.Name, string(mode), encodeList(times), encodeList(periods),
			m.DosesPerDay, boolToInt(m.Active), toNullInt64(m.PausedUntil), m.CreatedAt.UTC().Unix(),
		).Scan(&m.ID)
	})
}

// GetMedication returns one medication by id.
func (r *SQLRepo) GetMedication(ctx context.Context, id int64) (*domain.Medication, error) {
	var out *domain.Medication
	err := r.pool.do(ctx, "GetMedication", func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, r.q(`SELECT `+medicationCols+` FROM medications WHERE id = ?`), id)
		m, err := scanMedication(row)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return out, err
}

// ListMedications returns a user's medications ordered by creation.
func (r *SQLRepo) ListMedications(ctx context.Context, userID int64, includeInactive bool) ([]domain.Medication, error) {
	q := `SELECT ` + medicationCols + ` FROM medications WHERE user_id = ?`
	if !includeInactive {
		q += ` AND is_active = 1`
	}
	return r.queryMedications(ctx, "ListMedications", q+` ORDER BY id ASC`, userID)
}

// ActiveMedications returns every active medication across all users.
func (r *SQLRepo) ActiveMedications(ctx context.Context) ([]domain.Medication, error) {
	return r.queryMedications(ctx, "ActiveMedications",
		`SELECT `+medicationCols+` FROM medications WHERE is_active = 1 ORDER BY id ASC`)
}

// DueForAutoResume returns paused medications whose pause has ended at now.
func (r *SQLRepo) DueForAutoResume(ctx context.Context, now time.Time) ([]domain.Medication, error) {
	return r.queryMedications(ctx, "DueForAutoResume", `
		SELECT `+medicationCols+`
		FROM medications
		WHERE is_active = 0
		  AND paused_until IS NOT NULL
		  AND paused_until <= ?
		ORDER BY paused_until ASC`,
		now.UTC().Unix(),
	)
}

// ReplaceSchedule overwrites the schedule and dose count of a medication.
func (r *SQLRepo) ReplaceSchedule(ctx context.Context, id int64, s domain.Schedule) error {
	if s == nil {
		return fmt.Errorf("%w: nil schedule", domain.ErrInvalidSchedule)
	}
	mode, times, periods := domain.EncodeSchedule(s)
	return r.execOne(ctx, "ReplaceSchedule", `
		UPDATE medications
		SET schedule_mode = ?, times = ?, periods = ?, doses_per_day = ?
		WHERE id = ?`,
		string(mode), encodeList(times), encodeList(periods), len(times), id,
	)
}

// SetMedicationActive activates or pauses a medication. Activation is
// conditional on the row being inactive, so concurrent resumes apply once.
func (r *SQLRepo) SetMedicationActive(ctx context.Context, id int64, active bool, pausedUntil *time.Time) (bool, error) {
	var (
		query string
		args  []any
	)
	if active {
		query = `UPDATE medications SET is_active = 1, paused_until = NULL WHERE id = ? AND is_active = 0`
		args = []any{id}
	} else {
		query = `UPDATE medications SET is_active = 0, paused_until = ? WHERE id = ?`
		args = []any{toNullInt64(pausedUntil), id}
	}

	var changed bool
	err := r.pool.do(ctx, "SetMedicationActive", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, r.q(query), args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = n > 0
		return nil
	})
	return changed, err
}

// DeleteMedication removes a medication together with its intakes.
func (r *SQLRepo) DeleteMedication(ctx context.Context, id int64) error {
	return r.pool.tx(ctx, "DeleteMedication", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM intakes WHERE medication_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, r.q(`DELETE FROM medications WHERE id = ?`), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
