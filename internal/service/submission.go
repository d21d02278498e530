package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/model"
	"github.com/sakif/signature-plotter/internal/repository"
)

// MaxFieldLength bounds name, department and faculty.
const MaxFieldLength = 255

// SubmitResult is what a successful signed submission produced.
type SubmitResult struct {
	User      *model.UserProfile
	Created   bool
	Signature *model.SignatureArtifact
}

// SubmissionService is the user registry plus the signature retention store.
type SubmissionService struct {
	users      repository.UserRepository
	signatures repository.SignatureRepository
	conversion *ConversionService
	roles      map[string]struct{}
	logger     *slog.Logger

	// now is the clock; tests replace it to get distinct timestamps.
	now func() time.Time
}

// NewSubmissionService creates a SubmissionService. allowedRoles is the role
// enum; model.DefaultRole is always accepted.
func NewSubmissionService(
	users repository.UserRepository,
	signatures repository.SignatureRepository,
	conversion *ConversionService,
	allowedRoles []string,
	logger *slog.Logger,
) *SubmissionService {
	roles := make(map[string]struct{}, len(allowedRoles)+1)
	roles[model.DefaultRole] = struct{}{}
	for _, r := range allowedRoles {
		roles[r] = struct{}{}
	}
	return &SubmissionService{
		users:      users,
		signatures: signatures,
		conversion: conversion,
		roles:      roles,
		logger:     logger,
		now:        time.Now,
	}
}

// NormalizeEmail is the one normalization applied before any lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpsertProfile creates or updates the profile for in.Email.
//
// On create, SubmittedAt comes from the input or defaults to now and a
// missing role becomes model.DefaultRole. On update only name, role,
// department and faculty change; absent optional fields keep their stored
// values.
func (s *SubmissionService) UpsertProfile(ctx context.Context, in model.ProfileInput) (*model.UserProfile, bool, error) {
	in, err := s.normalizeProfile(in)
	if err != nil {
		return nil, false, err
	}

	user, created, err := s.users.UpsertUser(ctx, in, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to upsert user profile", slog.String("error", err.Error()))
		return nil, false, fmt.Errorf("upserting profile: %w", err)
	}

	if created {
		s.logger.Info("user profile created", slog.String("user_id", user.ID))
	} else {
		s.logger.Info("user profile updated", slog.String("user_id", user.ID))
	}
	return user, created, nil
}

func (s *SubmissionService) normalizeProfile(in model.ProfileInput) (model.ProfileInput, error) {
	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" {
		return in, apperror.ValidationFailed("email", "email is required")
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, apperror.ValidationFailed("name", "name is required")
	}
	if len(in.Name) > MaxFieldLength {
		return in, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxFieldLength))
	}

	if in.Role != nil {
		role := strings.TrimSpace(*in.Role)
		if _, ok := s.roles[role]; !ok {
			return in, apperror.ValidationFailed("role", fmt.Sprintf("role %q is not allowed", role))
		}
		in.Role = &role
	}

	optional := []struct {
		field string
		value **string
	}{
		{"department", &in.Department},
		{"faculty", &in.Faculty},
	}
	for _, o := range optional {
		if *o.value == nil {
			continue
		}
		trimmed := strings.TrimSpace(**o.value)
		if len(trimmed) > MaxFieldLength {
			return in, apperror.ValidationFailed(o.field,
				fmt.Sprintf("%s must be %d characters or less", o.field, MaxFieldLength))
		}
		*o.value = &trimmed
	}

	if in.SubmittedAt != nil {
		t := in.SubmittedAt.UTC()
		in.SubmittedAt = &t
	}
	return in, nil
}

// StoreSignature converts svg and stores the result for userID, keeping at
// most model.MaxSignaturesPerUser artifacts. A failed conversion stores
// nothing.
func (s *SubmissionService) StoreSignature(ctx context.Context, userID, svg string) (*model.SignatureArtifact, error) {
	conv, err := s.conversion.Convert(ctx, svg)
	if err != nil {
		return nil, err
	}
	return s.storeConversion(ctx, userID, svg, conv)
}

func (s *SubmissionService) storeConversion(ctx context.Context, userID, svg string, conv *model.Conversion) (*model.SignatureArtifact, error) {
	// A request abandoned during conversion must not write anything.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("storing signature: %w", err)
	}

	sig := &model.SignatureArtifact{
		UserID:    userID,
		SVGData:   svg,
		GCodeData: conv.GCode,
		Metadata:  conv.Metadata,
		CreatedAt: s.now().UTC(),
	}
	if err := s.signatures.InsertSignature(ctx, sig, model.MaxSignaturesPerUser); err != nil {
		s.logger.Error("failed to store signature",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing signature: %w", err)
	}

	s.logger.Info("signature stored",
		slog.String("user_id", userID),
		slog.String("signature_id", sig.ID),
		slog.Int("gcode_lines", sig.Metadata.Lines),
	)
	return sig, nil
}

// ListSignatures returns the stored artifacts of userID, newest first.
func (s *SubmissionService) ListSignatures(ctx context.Context, userID string) ([]model.SignatureArtifact, error) {
	sigs, err := s.signatures.ListSignatures(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing signatures: %w", err)
	}
	return sigs, nil
}

// Submit handles a verified submission: convert, upsert the profile, store.
//
// The SVG is converted before the profile is touched, so an unconvertible
// drawing leaves no trace at all.
func (s *SubmissionService) Submit(ctx context.Context, in model.ProfileInput, svg string) (*SubmitResult, error) {
	in, err := s.normalizeProfile(in)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversion.Convert(ctx, svg)
	if err != nil {
		return nil, err
	}

	user, created, err := s.UpsertProfile(ctx, in)
	if err != nil {
		return nil, err
	}

	sig, err := s.storeConversion(ctx, user.ID, svg, conv)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{User: user, Created: created, Signature: sig}, nil
}

// Retrieve returns the profile for email and its signatures, newest first.
// An unknown email is apperror.ErrNotFound.
func (s *SubmissionService) Retrieve(ctx context.Context, email string) (*model.UserProfile, []model.SignatureArtifact, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil, apperror.ValidationFailed("email", "email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	sigs, err := s.ListSignatures(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, sigs, nil
}
