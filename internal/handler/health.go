package handler

import (
	"net/http"
	"time"
)

const (
	serviceName    = "GCode Core API"
	serviceVersion = "1.0.0"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Endpoints map[string]string `json:"endpoints"`
}

// HandleHealth reports liveness and lists the API endpoints.
//
// HTTP: GET /api/health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   serviceVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Endpoints: map[string]string{
			"convert":         "/api/convert",
			"signed_submit":   "/api/signed/submit",
			"signed_retrieve": "/api/signed/retrieve",
		},
	})
}
