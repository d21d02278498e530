package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/model"
	"github.com/sakif/signature-plotter/internal/service"
)

// ConvertHandler serves the open SVG → G-code endpoint.
type ConvertHandler struct {
	conversion *service.ConversionService
	validate   *validator.Validate
	maxBytes   int64
	logger     *slog.Logger
}

// NewConvertHandler creates a ConvertHandler. maxBytes caps the request body.
func NewConvertHandler(conversion *service.ConversionService, maxBytes int64, logger *slog.Logger) *ConvertHandler {
	return &ConvertHandler{
		conversion: conversion,
		validate:   newValidator(),
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

type convertRequest struct {
	SVGData string `json:"svg_data" validate:"required,svg"`
}

type convertResponse struct {
	Success  bool                `json:"success"`
	GCode    string              `json:"gcode"`
	Message  string              `json:"message"`
	Metadata model.GCodeMetadata `json:"metadata"`
}

// HandleConvert converts an SVG drawing to G-code.
//
// HTTP: POST /api/convert
//
// The SVG arrives in one of three ways:
//
//	application/json      {"svg_data": "<svg ...>"}
//	form-urlencoded       svg_data=<svg ...>
//	multipart/form-data   svg_file=@drawing.svg  (or an svg_data field)
func (h *ConvertHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	svg, err := h.readSVG(r)
	if err != nil {
		h.logger.Warn("invalid convert request", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	conv, err := h.conversion.Convert(r.Context(), svg)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		Success:  true,
		GCode:    conv.GCode,
		Message:  "SVG converted successfully to G-code",
		Metadata: conv.Metadata,
	})
}

func (h *ConvertHandler) readSVG(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var req convertRequest
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(h.maxBytes); err != nil {
			return "", bodyError(err)
		}
		if file, header, err := r.FormFile("svg_file"); err == nil {
			defer file.Close()
			h.logger.Info("processing SVG upload",
				slog.String("filename", header.Filename),
				slog.Int64("bytes", header.Size),
			)
			return readUpload(file, header.Filename)
		}
		req.SVGData = r.FormValue("svg_data")
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", bodyError(err)
		}
		req.SVGData = r.PostFormValue("svg_data")
	default:
		if err := decodeJSON(r, &req); err != nil {
			return "", err
		}
	}

	if err := h.validate.Struct(req); err != nil {
		return "", validationError(err)
	}
	return req.SVGData, nil
}

// readUpload checks an uploaded file: .svg extension, UTF-8, <svg root.
func readUpload(file io.Reader, filename string) (string, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".svg") {
		return "", apperror.ValidationFailed("svg_file", "file must have a .svg extension")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", bodyError(err)
	}
	if !utf8.Valid(data) {
		return "", apperror.ValidationFailed("svg_file", "SVG file must be UTF-8 encoded")
	}

	svg := string(data)
	if strings.TrimSpace(svg) == "" {
		return "", apperror.ValidationFailed("svg_file", "SVG content is empty")
	}
	if !looksLikeSVG(svg) {
		return "", apperror.ValidationFailed("svg_file", "invalid SVG file content, must start with <svg tag")
	}
	return svg, nil
}
