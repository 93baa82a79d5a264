package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// HeaderCredential carries the admin credential on admin and override calls.
const HeaderCredential = "X-Admin-Credential"

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string  `json:"error"`
	ErrorDescription string  `json:"error_description,omitempty"`
	Outstanding      *string `json:"outstanding,omitempty"`
}

// RequestLogger logs one line per request with the chi request ID.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "http request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

func credential(r *http.Request) ledger.Credential {
	return ledger.Credential(r.Header.Get(HeaderCredential))
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, error, description string) {
	writeJSON(w, status, ErrorResponse{
		Error:            error,
		ErrorDescription: description,
	})
}

// writeLedgerError maps a ledger failure to its status code. Internal
// failures are logged and reported without detail.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err)
		writeJSONError(w, http.StatusInternalServerError, string(ledger.KindInternal), "Internal error")
		return
	}

	resp := ErrorResponse{Error: string(le.Kind), ErrorDescription: le.Message}
	if le.Outstanding != nil {
		o := le.Outstanding.StringFixed(2)
		resp.Outstanding = &o
	}
	writeJSON(w, statusFor(le.Category()), resp)
}

func statusFor(c ledger.Category) int {
	switch c {
	case ledger.CategoryValidation:
		return http.StatusBadRequest
	case ledger.CategoryAuthorization:
		return http.StatusUnauthorized
	case ledger.CategoryNotFound:
		return http.StatusNotFound
	case ledger.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
