package profile

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Directory resolves a user id to its display profile. A missing user is
// reported as domain.ErrProfileNotFound.
type Directory interface {
	Lookup(ctx context.Context, userID string) (domain.Profile, error)
}
