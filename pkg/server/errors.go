package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/japaniel/readerer/pkg/decoder"
	"github.com/japaniel/readerer/pkg/server/middleware"
	"github.com/japaniel/readerer/pkg/session"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps reader errors onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, decoder.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, decoder.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoDocument):
		return http.StatusNotFound
	case errors.Is(err, session.ErrStaleSelection), errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyWord),
		errors.Is(err, session.ErrNotClickable),
		errors.Is(err, session.ErrNoDefinition),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromCtx(r.Context())),
		)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: middleware.RequestIDFromCtx(r.Context()),
	})
}
