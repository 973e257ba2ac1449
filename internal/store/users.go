package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
)

const userCols = `id, external_id, first_name, timezone, remind_before_minutes,
	language, last_summary_date, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		tz        sql.NullString
		lastNS    sql.NullString
		createdAt int64
	)
	if err := s.Scan(
		&u.ID, &u.ExternalID, &u.FirstName, &tz, &u.LeadMinutes,
		&u.Language, &lastNS, &createdAt,
	); err != nil {
		return nil, err
	}
	last, err := domain.ParseDate(lastNS.String)
	if err != nil {
		return nil, fmt.Errorf("user %d: last_summary_date: %w", u.ID, err)
	}
	u.TZ = tz.String
	u.LastSummaryDate = last
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// EnsureUser inserts the user unless a row with the same external id exists.
// An existing row is returned unchanged apart from a refreshed first name.
func (r *SQLRepo) EnsureUser(ctx context.Context, u domain.User) (*domain.User, error) {
	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = r.now().UTC().Unix()
	}
	lang := u.Language
	if lang == "" {
		lang = "ru"
	}

	var out *domain.User
	err := r.pool.tx(ctx, "EnsureUser", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.q(`
			INSERT INTO users (external_id, first_name, timezone, remind_before_minutes, language, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (external_id) DO UPDATE SET
				first_name = CASE WHEN excluded.first_name <> '' THEN excluded.first_name ELSE users.first_name END`),
			u.ExternalID, u.FirstName, toNullString(u.TZ), u.LeadMinutes, lang, created,
		); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, r.q(`SELECT `+userCols+` FROM users WHERE external_id = ?`), u.ExternalID)
		got, err := scanUser(row)
		if err != nil {
			return err
		}
		out = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepo) getUserWhere(ctx context.Context, op, where string, arg int64) (*domain.User, error) {
	var out *domain.User
	err := r.pool.do(ctx, op, func(db *sql.DB) error {
		row := db.QueryRowContext(ctx, r.q(`SELECT `+userCols+` FROM users WHERE `+where), arg)
		u, err := scanUser(row)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return out, err
}

// GetUser returns a user by internal id.
func (r *SQLRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return r.getUserWhere(ctx, "GetUser", "id = ?", id)
}

// GetUserByExternalID returns a user by chat id.
func (r *SQLRepo) GetUserByExternalID(ctx context.Context, externalID int64) (*domain.User, error) {
	return r.getUserWhere(ctx, "GetUserByExternalID", "external_id = ?", externalID)
}

// execOne runs an UPDATE that must touch exactly one row.
func (r *SQLRepo) execOne(ctx context.Context, op, query string, args ...any) error {
	return r.pool.do(ctx, op, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, r.q(query), args...)
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

func (r *SQLRepo) SetUserTimezone(ctx context.Context, id int64, tz string) error {
	return r.execOne(ctx, "SetUserTimezone", `UPDATE users SET timezone = ? WHERE id = ?`, toNullString(tz), id)
}

func (r *SQLRepo) SetUserLead(ctx context.Context, id int64, minutes int) error {
	return r.execOne(ctx, "SetUserLead", `UPDATE users SET remind_before_minutes = ? WHERE id = ?`, minutes, id)
}

func (r *SQLRepo) SetUserLanguage(ctx context.Context, id int64, lang string) error {
	return r.execOne(ctx, "SetUserLanguage", `UPDATE users SET language = ? WHERE id = ?`, lang, id)
}

// SetLastSummaryDate records the local date of the last delivered summary.
func (r *SQLRepo) SetLastSummaryDate(ctx context.Context, id int64, d domain.Date) error {
	return r.execOne(ctx, "SetLastSummaryDate", `UPDATE users SET last_summary_date = ? WHERE id = ?`, toNullString(d.String()), id)
}

// UsersWithAnyMedication returns users owning at least one medication, active or not.
func (r *SQLRepo) UsersWithAnyMedication(ctx context.Context) ([]domain.User, error) {
	var res []domain.User
	err := r.pool.do(ctx, "UsersWithAnyMedication", func(db *sql.DB) error {
		res = res[:0]
		rows, err := db.QueryContext(ctx, `
			SELECT `+userCols+`
			FROM users u
			WHERE EXISTS (SELECT 1 FROM medications m WHERE m.user_id = u.id)
			ORDER BY id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			res = append(res, *u)
		}
		return rows.Err()
	})
	return res, err
}
