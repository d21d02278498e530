package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/model"
	"github.com/sakif/signature-plotter/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const upsertUserQuery = `
INSERT INTO users (id, email, name, role, department, faculty, created_at, updated_at, submitted_at)
VALUES ($1, $2, $3, COALESCE($4, $5), COALESCE($6, ''), COALESCE($7, ''), $8, $8, $9)
ON CONFLICT (email) DO UPDATE SET
    name       = EXCLUDED.name,
    role       = COALESCE($4, users.role),
    department = COALESCE($6, users.department),
    faculty    = COALESCE($7, users.faculty),
    updated_at = EXCLUDED.updated_at
RETURNING id, email, name, role, department, faculty, created_at, updated_at, submitted_at`

const selectUserByEmailQuery = `
SELECT id, email, name, role, department, faculty, created_at, updated_at, submitted_at
FROM users
WHERE email = $1`

// UpsertUser inserts or updates the profile for in.Email. The returned id
// equals the freshly generated one only when the insert branch ran.
func (db *DB) UpsertUser(ctx context.Context, in model.ProfileInput, now time.Time) (*model.UserProfile, bool, error) {
	now = now.UTC()
	submitted := now
	if in.SubmittedAt != nil {
		submitted = in.SubmittedAt.UTC()
	}
	newID := db.newID()

	user, err := scanUser(db.conn.QueryRowContext(ctx, upsertUserQuery,
		newID, in.Email, in.Name,
		in.Role, model.DefaultRole,
		in.Department, in.Faculty,
		now, submitted,
	))
	if err != nil {
		return nil, false, apperror.DataLayer("upsert user", fmt.Errorf("postgres: upserting user: %w", err))
	}
	return user, user.ID == newID, nil
}

// GetUserByEmail retrieves a profile by its normalized email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx, selectUserByEmailQuery, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, apperror.DataLayer("get user", fmt.Errorf("postgres: getting user by email: %w", err))
	}
	return user, nil
}

func scanUser(row *sql.Row) (*model.UserProfile, error) {
	var u model.UserProfile
	if err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Department, &u.Faculty,
		&u.CreatedAt, &u.UpdatedAt, &u.SubmittedAt,
	); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	u.SubmittedAt = u.SubmittedAt.UTC()
	return &u, nil
}
