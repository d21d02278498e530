// Package repository declares the storage contracts the service layer
// depends on. Implementations live in the sqlite and postgres subpackages.
package repository

import (
	"context"
	"time"

	"github.com/sakif/signature-plotter/internal/model"
)

// UserRepository stores user profiles keyed by normalized email.
type UserRepository interface {
	// UpsertUser creates the profile for in.Email or updates its mutable
	// fields. created reports whether a new row was inserted. CreatedAt and
	// SubmittedAt of an existing profile are never changed.
	UpsertUser(ctx context.Context, in model.ProfileInput, now time.Time) (user *model.UserProfile, created bool, err error)

	// GetUserByEmail returns apperror.ErrNotFound when no profile exists.
	GetUserByEmail(ctx context.Context, email string) (*model.UserProfile, error)
}

// SignatureRepository stores signature artifacts under a retention window.
type SignatureRepository interface {
	// InsertSignature stores sig for sig.UserID and, in the same
	// transaction, deletes older artifacts so that at most keep remain. The
	// read-evict-insert sequence is serialized per user. sig.ID is set on
	// success.
	InsertSignature(ctx context.Context, sig *model.SignatureArtifact, keep int) error

	// ListSignatures returns a user's artifacts, newest first. An unknown
	// user has no artifacts; that is not an error.
	ListSignatures(ctx context.Context, userID string) ([]model.SignatureArtifact, error)
}
