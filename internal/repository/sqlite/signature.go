package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/model"
	"github.com/sakif/signature-plotter/internal/repository"
)

var _ repository.SignatureRepository = (*DB)(nil)

// InsertSignature runs the retention window and the insert as one unit:
//
//	BEGIN IMMEDIATE
//	  list the user's artifacts, oldest first
//	  if there are keep or more, delete all but the newest keep-1
//	  insert the new artifact
//	COMMIT
//
// Any failure rolls the whole transaction back, so either the new artifact
// is stored with the window applied or nothing changes.
func (db *DB) InsertSignature(ctx context.Context, sig *model.SignatureArtifact, keep int) error {
	if keep < 1 {
		return fmt.Errorf("sqlite: retention window must be at least 1, got %d", keep)
	}

	meta, err := json.Marshal(sig.Metadata)
	if err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("sqlite: encoding metadata: %w", err))
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("sqlite: beginning tx: %w", err))
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM signatures WHERE user_id = ? ORDER BY created_at ASC, seq ASC`,
		sig.UserID,
	)
	if err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("sqlite: listing existing signatures: %w", err))
	}
	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return apperror.DataLayer("insert signature", fmt.Errorf("sqlite: scanning signature id: %w", err))
		}
		existing = append(existing, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return apperror.DataLayer("insert signature", fmt.Errorf("sqlite: iterating signatures: %w", err))
	}
	rows.Close()

	if len(existing) >= keep {
		for _, id := range existing[:len(existing)-(keep-1)] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM signatures WHERE id = ?`, id); err != nil {
				return apperror.DataLayer("insert signature", fmt.Errorf("sqlite: evicting signature %s: %w", id, err))
			}
		}
	}

	id := xid.New().String()
	createdAt := sig.CreatedAt.UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO signatures (id, user_id, svg_data, gcode_data, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, sig.UserID, sig.SVGData, sig.GCodeData, string(meta), createdAt,
	)
	if err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("sqlite: inserting signature: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return apperror.DataLayer("insert signature", fmt.Errorf("sqlite: committing signature: %w", err))
	}

	sig.ID = id
	sig.CreatedAt = createdAt
	return nil
}

// ListSignatures returns a user's artifacts, newest first.
func (db *DB) ListSignatures(ctx context.Context, userID string) ([]model.SignatureArtifact, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, svg_data, gcode_data, metadata, created_at
		 FROM signatures
		 WHERE user_id = ?
		 ORDER BY created_at DESC, seq DESC`,
		userID,
	)
	if err != nil {
		return nil, apperror.DataLayer("list signatures", fmt.Errorf("sqlite: listing signatures: %w", err))
	}
	defer rows.Close()

	sigs := []model.SignatureArtifact{}
	for rows.Next() {
		var (
			s    model.SignatureArtifact
			meta string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.SVGData, &s.GCodeData, &meta, &s.CreatedAt); err != nil {
			return nil, apperror.DataLayer("list signatures", fmt.Errorf("sqlite: scanning signature: %w", err))
		}
		if err := json.Unmarshal([]byte(meta), &s.Metadata); err != nil {
			return nil, apperror.DataLayer("list signatures", fmt.Errorf("sqlite: decoding metadata of %s: %w", s.ID, err))
		}
		s.CreatedAt = s.CreatedAt.UTC()
		sigs = append(sigs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.DataLayer("list signatures", fmt.Errorf("sqlite: iterating signatures: %w", err))
	}

	return sigs, nil
}
