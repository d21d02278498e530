package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantLevel string
		wantParts []string
	}{
		{
			name: "ok request logs at info",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("hello"))
			},
			wantLevel: "level=INFO",
			wantParts: []string{"status=200", "bytes=5", "method=POST", "path=/api/convert"},
		},
		{
			name: "client error logs at warn",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			wantLevel: "level=WARN",
			wantParts: []string{"status=403", "bytes=0"},
		},
		{
			name: "server error logs at error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.WriteHeader(http.StatusOK) // superfluous, must not change the logged status
			},
			wantLevel: "level=ERROR",
			wantParts: []string{"status=500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			h := chimiddleware.RequestID(Logger(logger)(tt.handler))
			req := httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewBufferString(`{"request_signature":"deadbeef"}`))
			h.ServeHTTP(httptest.NewRecorder(), req)

			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "request_id=")
			for _, p := range tt.wantParts {
				assert.Contains(t, out, p)
			}
			assert.NotContains(t, out, "deadbeef", "request bodies must not be logged")
		})
	}
}
