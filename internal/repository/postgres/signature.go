package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/model"
	"github.com/sakif/signature-plotter/internal/repository"
)

var _ repository.SignatureRepository = (*DB)(nil)

// InsertSignature applies the retention window and inserts sig in one
// transaction. Locking the user row first serializes concurrent stores for
// the same user without blocking other users.
func (db *DB) InsertSignature(ctx context.Context, sig *model.SignatureArtifact, keep int) error {
	if keep < 1 {
		return fmt.Errorf("postgres: retention window must be at least 1, got %d", keep)
	}

	meta, err := json.Marshal(sig.Metadata)
	if err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("postgres: encoding metadata: %w", err))
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("postgres: beginning tx: %w", err))
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, sig.UserID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.DataLayer("insert signature", fmt.Errorf("postgres: user %s does not exist", sig.UserID))
		}
		return apperror.DataLayer("insert signature", fmt.Errorf("postgres: locking user: %w", err))
	}

	existing, err := signatureIDs(ctx, tx, sig.UserID)
	if err != nil {
		return apperror.DataLayer("insert signature", err)
	}

	if len(existing) >= keep {
		for _, id := range existing[:len(existing)-(keep-1)] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM signatures WHERE id = $1`, id); err != nil {
				return apperror.DataLayer("insert signature", fmt.Errorf("postgres: evicting signature %s: %w", id, err))
			}
		}
	}

	id := db.newID()
	createdAt := sig.CreatedAt.UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO signatures (id, user_id, svg_data, gcode_data, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sig.UserID, sig.SVGData, sig.GCodeData, string(meta), createdAt,
	)
	if err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("postgres: inserting signature: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("postgres: committing signature: %w", err))
	}

	sig.ID = id
	sig.CreatedAt = createdAt
	return nil
}

// signatureIDs lists a user's artifact ids, oldest first.
func signatureIDs(ctx context.Context, tx *sql.Tx, userID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM signatures WHERE user_id = $1 ORDER BY created_at ASC, seq ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing existing signatures: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scanning signature id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating signatures: %w", err)
	}
	return ids, nil
}

// ListSignatures returns a user's artifacts, newest first.
func (db *DB) ListSignatures(ctx context.Context, userID string) ([]model.SignatureArtifact, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, svg_data, gcode_data, metadata, created_at
		 FROM signatures
		 WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC`, userID)
	if err != nil {
		return nil, apperror.DataLayer("list signatures", fmt.Errorf("postgres: listing signatures: %w", err))
	}
	defer rows.Close()

	sigs := []model.SignatureArtifact{}
	for rows.Next() {
		var (
			s    model.SignatureArtifact
			meta []byte
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.SVGData, &s.GCodeData, &meta, &s.CreatedAt); err != nil {
			return nil, apperror.DataLayer("list signatures", fmt.Errorf("postgres: scanning signature: %w", err))
		}
		if err := json.Unmarshal(meta, &s.Metadata); err != nil {
			return nil, apperror.DataLayer("list signatures", fmt.Errorf("postgres: decoding metadata of %s: %w", s.ID, err))
		}
		s.CreatedAt = s.CreatedAt.UTC()
		sigs = append(sigs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.DataLayer("list signatures", fmt.Errorf("postgres: iterating signatures: %w", err))
	}
	return sigs, nil
}
