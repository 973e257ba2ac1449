package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
)

const intakeCols = `id, medication_id, scheduled_at, taken, taken_at,
	reminders_paused, reminder_sent, next_reminder_at, last_reminder_at`

func scanIntake(s rowScanner) (*domain.Intake, error) {
	var (
		in          domain.Intake
		scheduledAt int64
		takenInt    int
		pausedInt   int
		sentInt     int
		takenAtNS   sql.NullInt64
		nextNS      sql.NullInt64
		lastNS      sql.NullInt64
	)
	if err := s.Scan(
		&in.ID, &in.MedicationID, &scheduledAt, &takenInt, &takenAtNS,
		&pausedInt, &sentInt, &nextNS, &lastNS,
	); err != nil {
		return nil, err
	}
	in.ScheduledAt = time.Unix(scheduledAt, 0).UTC()
	in.Taken = takenInt != 0
	in.TakenAt = fromNullInt64(takenAtNS)
	in.RemindersPaused = pausedInt != 0
	in.ReminderSent = sentInt != 0
	in.NextReminderAt = fromNullInt64(nextNS)
	in.LastReminderAt = fromNullInt64(lastNS)
	return &in, nil
}

// GetIntake returns one intake by id.
func (r *SQLRepo) GetIntake(ctx context.Context, id int64) (*domain.Intake, error) {
	var out *domain.Intake
	err := r.pool.do(ctx, "GetIntake", func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, r.q(`SELECT `+intakeCols+` FROM intakes WHERE id = ?`), id)
		in, err := scanIntake(row)
		if err != nil {
			return err
		}
		out = in
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return out, err
}

// GetOrCreateIntake inserts or fetches the intake for (medID, scheduledAt)
// in one statement, so concurrent ticks converge on a single row. An
// existing row only gets next_reminder_at backfilled while untouched.
func (r *SQLRepo) GetOrCreateIntake(ctx context.Context, medID int64, scheduledAt time.Time, defaultReminderAt *time.Time) (*domain.Intake, error) {
	sched := scheduledAt.UTC().Unix()
	var out *domain.Intake
	err := r.pool.tx(ctx, "GetOrCreateIntake", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, r.q(`
			INSERT INTO intakes (medication_id, scheduled_at, next_reminder_at)
			VALUES (?, ?, ?)
			ON CONFLICT (medication_id, scheduled_at) DO UPDATE SET
				next_reminder_at = excluded.next_reminder_at
			WHERE intakes.taken = 0
			  AND intakes.reminders_paused = 0
			  AND intakes.reminder_sent = 0
			  AND intakes.next_reminder_at IS NULL
			  AND excluded.next_reminder_at IS NOT NULL
			RETURNING `+intakeCols),
			medID, sched, toNullInt64(defaultReminderAt),
		)
		in, err := scanIntake(row)
		if err == nil {
			out = in
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		// Conflict without update: the row exists and is left as is.
		row = tx.QueryRowContext(ctx, r.q(`
			SELECT `+intakeCols+`
			FROM intakes
			WHERE medication_id = ? AND scheduled_at = ?`),
			medID, sched,
		)
		in, err = scanIntake(row)
		if err != nil {
			return err
		}
		out = in
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IntakesForLocalDay returns the medication's intakes scheduled within the
// local calendar day d in loc, ordered by time.
func (r *SQLRepo) IntakesForLocalDay(ctx context.Context, medID int64, d domain.Date, loc *time.Location) ([]domain.Intake, error) {
	start, end := domain.DayBounds(d, loc)
	var res []domain.Intake
	err := r.pool.do(ctx, "IntakesForLocalDay", func(db *sql.DB) error {
		res = res[:0]
		rows, err := db.QueryContext(ctx, r.q(`
			SELECT `+intakeCols+`
			FROM intakes
			WHERE medication_id = ?
			  AND scheduled_at >= ?
			  AND scheduled_at < ?
			ORDER BY scheduled_at ASC`),
			medID, start.Unix(), end.Unix(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			in, err := scanIntake(rows)
			if err != nil {
				return err
			}
			res = append(res, *in)
		}
		return rows.Err()
	})
	return res, err
}

// UpdateIntake is a compare-and-set: next is written only while the stored
// mutable state still equals prev. applied is false when another writer won.
func (r *SQLRepo) UpdateIntake(ctx context.Context, prev, next domain.Intake) (bool, error) {
	eq := r.pool.dialect.nullSafeEq
	query := `
		UPDATE intakes
		SET taken = ?, taken_at = ?, reminders_paused = ?, reminder_sent = ?,
		    next_reminder_at = ?, last_reminder_at = ?
		WHERE id = ?
		  AND taken = ?
		  AND reminders_paused = ?
		  AND reminder_sent = ?
		  AND next_reminder_at ` + eq + ` ?`

	var applied bool
	err := r.pool.do(ctx, "UpdateIntake", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, r.q(query),
			boolToInt(next.Taken), toNullInt64(next.TakenAt),
			boolToInt(next.RemindersPaused), boolToInt(next.ReminderSent),
			toNullInt64(next.NextReminderAt), toNullInt64(next.LastReminderAt),
			prev.ID,
			boolToInt(prev.Taken), boolToInt(prev.RemindersPaused), boolToInt(prev.ReminderSent),
			toNullInt64(prev.NextReminderAt),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		applied = n > 0
		return nil
	})
	return applied, err
}

// ClearFutureUntakenIntakes deletes the medication's untaken intakes
// scheduled at or after from, so they are regenerated from the current schedule.
func (r *SQLRepo) ClearFutureUntakenIntakes(ctx context.Context, medID int64, from time.Time) (int64, error) {
	var n int64
	err := r.pool.do(ctx, "ClearFutureUntakenIntakes", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, r.q(`
			DELETE FROM intakes
			WHERE medication_id = ?
			  AND taken = 0
			  AND scheduled_at >= ?`),
			medID, from.UTC().Unix(),
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
