package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/model"
	"github.com/sakif/signature-plotter/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, name, role, department, faculty, created_at, updated_at, submitted_at`

// UpsertUser inserts or updates the profile for in.Email in one statement.
//
// INSERT ... ON CONFLICT(email) DO UPDATE keeps the existing row (and its
// id, created_at and submitted_at) and only rewrites the mutable columns.
// A NULL optional argument means "not sent", so COALESCE keeps the stored
// value. The row is then read back inside the same transaction; if its id is
// the one we generated, the insert branch ran.
func (db *DB) UpsertUser(ctx context.Context, in model.ProfileInput, now time.Time) (*model.UserProfile, bool, error) {
	now = now.UTC()
	submitted := now
	if in.SubmittedAt != nil {
		submitted = in.SubmittedAt.UTC()
	}
	newID := xid.New().String()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, apperror.DataLayer("upsert user", fmt.Errorf("sqlite: beginning tx: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, department, faculty, created_at, updated_at, submitted_at)
		 VALUES (?, ?, ?, COALESCE(?, ?), COALESCE(?, ''), COALESCE(?, ''), ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
			name       = excluded.name,
			role       = COALESCE(?, users.role),
			department = COALESCE(?, users.department),
			faculty    = COALESCE(?, users.faculty),
			updated_at = excluded.updated_at`,
		newID, in.Email, in.Name,
		in.Role, model.DefaultRole, in.Department, in.Faculty,
		now, now, submitted,
		in.Role, in.Department, in.Faculty,
	)
	if err != nil {
		return nil, false, apperror.DataLayer("upsert user", fmt.Errorf("sqlite: upserting user: %w", err))
	}

	user, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, in.Email))
	if err != nil {
		return nil, false, apperror.DataLayer("upsert user", fmt.Errorf("sqlite: reading back user: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, false, apperror.DataLayer("upsert user", fmt.Errorf("sqlite: committing upsert: %w", err))
	}

	return user, user.ID == newID, nil
}

// GetUserByEmail retrieves a profile by its normalized email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, apperror.DataLayer("get user", fmt.Errorf("sqlite: getting user by email: %w", err))
	}
	return user, nil
}

func scanUser(row *sql.Row) (*model.UserProfile, error) {
	var u model.UserProfile
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.Department,
		&u.Faculty,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	u.SubmittedAt = u.SubmittedAt.UTC()
	return &u, nil
}
