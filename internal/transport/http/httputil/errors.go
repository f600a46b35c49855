package httputil

import (
	"errors"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidCursor):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err to a status and writes it. Internal errors are logged
// and replaced by a generic message carrying the request id.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	switch status {
	case http.StatusInternalServerError:
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed", "err", err)
		var meta map[string]any
		if id, ok := RequestIDFromContext(r.Context()); ok {
			meta = map[string]any{"requestId": id}
		}
		Error(w, status, "internal error", meta)
	case http.StatusBadRequest:
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			meta := make(map[string]any, len(ve.Fields))
			for k, v := range ve.Fields {
				meta[k] = v
			}
			Error(w, status, domain.ErrValidation.Error(), meta)
			return
		}
		Error(w, status, err.Error(), nil)
	default:
		Error(w, status, err.Error(), nil)
	}
}
