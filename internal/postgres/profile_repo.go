package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// ProfileRepository reads the users table owned by the account service.
type ProfileRepository struct {
	q querier
}

func NewProfileRepository(q querier) *ProfileRepository {
	return &ProfileRepository{q: q}
}

func (r *ProfileRepository) Lookup(ctx context.Context, userID string) (domain.Profile, error) {
	var (
		p    domain.Profile
		role string
	)
	err := r.q.QueryRow(ctx, queryGetProfile, userID).
		Scan(&p.ID, &p.DisplayName, &role, &p.Specialty, &p.ProfileImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, userID)
		}
		return domain.Profile{}, mapPgError(err)
	}
	p.Role = domain.Role(role)
	return p, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, p domain.Profile) error {
	_, err := r.q.Exec(ctx, queryUpsertProfile,
		p.ID, p.DisplayName, string(p.Role), p.Specialty, p.ProfileImageURL)
	return mapPgError(err)
}
