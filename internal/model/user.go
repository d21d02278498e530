// Package model defines the data structures used throughout the application.
package model

import "time"

// DefaultRole is assigned to a new profile whose submission carried no role.
const DefaultRole = "student"

// UserProfile is the identity behind one or more signature submissions.
//
// Email is the natural key: it is stored lower-cased and trimmed, and the
// UNIQUE constraint on users.email guarantees one profile per address.
// ID is an internal xid so foreign keys don't depend on the email string.
//
// SubmittedAt is set once, when the profile is first created, and is never
// overwritten by later submissions.
type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	Department  string    `json:"department"`
	Faculty     string    `json:"faculty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ProfileInput carries the mutable profile fields of a submission.
// A nil pointer means "not sent": on update the stored value is kept.
type ProfileInput struct {
	Email       string
	Name        string
	Role        *string
	Department  *string
	Faculty     *string
	SubmittedAt *time.Time
}
