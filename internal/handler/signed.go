package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/auth"
	"github.com/sakif/signature-plotter/internal/model"
	"github.com/sakif/signature-plotter/internal/service"
)

// SignedHandler serves the endpoints that only trusted frontends may call.
//
// REQUEST PIPELINE:
//
//	decode → validate shape → verify origin + HMAC → service
//
// The signature is checked against the fields exactly as the client sent
// them. Normalization (lower-casing the email, defaulting the role) happens
// afterwards in the service, so both sides always sign the same bytes.
type SignedHandler struct {
	verifier    *auth.Verifier
	submissions *service.SubmissionService
	validate    *validator.Validate
	maxBytes    int64
	logger      *slog.Logger
}

// NewSignedHandler creates a SignedHandler.
func NewSignedHandler(verifier *auth.Verifier, submissions *service.SubmissionService, maxBytes int64, logger *slog.Logger) *SignedHandler {
	return &SignedHandler{
		verifier:    verifier,
		submissions: submissions,
		validate:    newValidator(),
		maxBytes:    maxBytes,
		logger:      logger,
	}
}

// optionalString is a JSON string field that remembers whether the client
// sent it. A field sent as null is Present with a nil Value.
type optionalString struct {
	Value   *string
	Present bool
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

func (o optionalString) addTo(params auth.Params, key string) auth.Params {
	return params.AddOptional(key, o.Present, o.Value)
}

type submitRequest struct {
	Name             string         `json:"name" validate:"required,max=255"`
	Email            string         `json:"email" validate:"required,max=254"`
	Role             optionalString `json:"role" validate:"omitempty,max=255"`
	Department       optionalString `json:"department" validate:"omitempty,max=255"`
	Faculty          optionalString `json:"faculty" validate:"omitempty,max=255"`
	SubmittedAt      optionalString `json:"submitted_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	SVGData          string         `json:"svg_data" validate:"required,svg"`
	RequestSignature string         `json:"request_signature" validate:"required"`
}

// params lists the signed fields. Absent optional fields are left out and
// optional fields sent as null sign as an empty value.
func (req submitRequest) params() auth.Params {
	p := auth.Params{}.
		Add("name", req.Name).
		Add("email", req.Email).
		Add("svg_data", req.SVGData)
	p = req.Role.addTo(p, "role")
	p = req.Department.addTo(p, "department")
	p = req.Faculty.addTo(p, "faculty")
	return req.SubmittedAt.addTo(p, "submitted_at")
}

type submitResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	UserID      string              `json:"user_id"`
	SignatureID string              `json:"signature_id"`
	GCode       string              `json:"gcode"`
	Metadata    model.GCodeMetadata `json:"metadata"`
}

type retrieveRequest struct {
	Email            string `json:"email" validate:"required,max=254"`
	RequestSignature string `json:"request_signature" validate:"required"`
}

func (req retrieveRequest) params() auth.Params {
	return auth.Params{}.Add("email", req.Email)
}

type retrieveResponse struct {
	Success    bool                      `json:"success"`
	User       *model.UserProfile        `json:"user"`
	Signatures []model.SignatureArtifact `json:"signatures"`
}

// HandleSubmit stores a user's profile and signature.
//
// HTTP: POST /api/signed/submit
//
// 400 for malformed fields or an unconvertible SVG, 403 for an untrusted
// origin or a wrong signature. Nothing is written unless the signature
// verifies.
func (h *SignedHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.checkShape(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.verify(r, req.params(), req.RequestSignature); err != nil {
		writeError(w, h.logger, err)
		return
	}

	in := model.ProfileInput{
		Email:      req.Email,
		Name:       req.Name,
		Role:       req.Role.Value,
		Department: req.Department.Value,
		Faculty:    req.Faculty.Value,
	}
	if req.SubmittedAt.Value != nil {
		t, err := time.Parse(time.RFC3339, *req.SubmittedAt.Value)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("submitted_at", "submitted_at must be an RFC 3339 timestamp"))
			return
		}
		in.SubmittedAt = &t
	}

	res, err := h.submissions.Submit(r.Context(), in, req.SVGData)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Success:     true,
		Message:     "Data submitted successfully",
		UserID:      res.User.ID,
		SignatureID: res.Signature.ID,
		GCode:       res.Signature.GCodeData,
		Metadata:    res.Signature.Metadata,
	})
}

// HandleRetrieve returns a user's profile and stored signatures.
//
// HTTP: POST /api/signed/retrieve
//
// 404 when no profile exists for the email.
func (h *SignedHandler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	var req retrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.checkShape(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.verify(r, req.params(), req.RequestSignature); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, sigs, err := h.submissions.Retrieve(r.Context(), req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{
		Success:    true,
		User:       user,
		Signatures: sigs,
	})
}

// checkShape runs the struct rules plus an email syntax check on the
// normalized address.
func (h *SignedHandler) checkShape(req any) error {
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	var email string
	switch v := req.(type) {
	case submitRequest:
		email = v.Email
	case retrieveRequest:
		email = v.Email
	}
	if err := h.validate.Var(service.NormalizeEmail(email), "email"); err != nil {
		return apperror.ValidationFailed("email", "enter a valid email address")
	}
	return nil
}

func (h *SignedHandler) verify(r *http.Request, params auth.Params, signature string) error {
	if !h.verifier.Verify(params, signature, r.Header.Get("Origin")) {
		return apperror.AuthenticationFailed("Request signature verification failed")
	}
	return nil
}
