package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/transport/dto"
)

const maxBodyBytes = 1 << 20

// decodeAndValidate reads a single JSON object with no unknown fields and
// runs the struct's validate tags. Every failure is a domain validation error.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", "invalid json: "+err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.Invalid("body", "body must contain a single JSON object")
	}
	return dto.Validate(dst)
}
