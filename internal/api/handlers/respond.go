package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/document"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorWriter maps service errors to responses. Internal error text is only
// exposed in development.
type errorWriter struct {
	development bool
}

func (e errorWriter) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (e errorWriter) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials), errors.Is(err, account.ErrNotFound):
		e.writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, document.ErrNotFound):
		e.writeError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, document.ErrUnknownVersion):
		e.writeError(w, http.StatusNotFound, "Version not found")
	case errors.Is(err, document.ErrAlreadyProcessing):
		e.writeError(w, http.StatusConflict, "Document is already being processed")
	case errors.Is(err, document.ErrFileTooLarge):
		e.writeError(w, http.StatusBadRequest, "File too large")
	case errors.Is(err, document.ErrNoBlob):
		e.writeError(w, http.StatusBadRequest, "Document file is not available for processing")
	case errors.Is(err, document.ErrValidation):
		e.writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
		body := map[string]string{"error": "Internal server error"}
		if e.development {
			body["details"] = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

var errBodyTooLarge = errors.New("request body too large")

// decode reads a JSON body of at most limit bytes. An oversized body returns
// errBodyTooLarge; callers decide what that means for their endpoint.
func decode(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errBodyTooLarge
		}
		return err
	}
	return nil
}

// badBody answers a decode failure: 413 for an oversized body, otherwise 400
// with msg.
func (e errorWriter) badBody(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, errBodyTooLarge) {
		e.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	e.writeError(w, http.StatusBadRequest, msg)
}
