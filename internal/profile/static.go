package profile

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type seedEntry struct {
	ID              string  `yaml:"id"`
	DisplayName     string  `yaml:"displayName"`
	Role            string  `yaml:"role"`
	Specialty       *string `yaml:"specialty"`
	ProfileImageURL *string `yaml:"profileImageUrl"`
}

type seedFile struct {
	Profiles []seedEntry `yaml:"profiles"`
}

// Static is an immutable in-memory directory, loaded from a YAML seed file for
// deployments without an account database.
type Static struct {
	byID map[string]domain.Profile
}

func NewStatic(profiles ...domain.Profile) *Static {
	s := &Static{byID: make(map[string]domain.Profile, len(profiles))}
	for _, p := range profiles {
		s.byID[p.ID] = p
	}
	return s
}

func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles %s: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}

	profiles := make([]domain.Profile, 0, len(f.Profiles))
	for i, e := range f.Profiles {
		role := domain.Role(e.Role)
		if e.ID == "" || (role != domain.RoleDoctor && role != domain.RolePatient) {
			return nil, fmt.Errorf("profiles %s: entry %d: id and role doctor|patient are required", path, i)
		}
		profiles = append(profiles, domain.Profile{
			ID:              e.ID,
			DisplayName:     e.DisplayName,
			Role:            role,
			Specialty:       e.Specialty,
			ProfileImageURL: e.ProfileImageURL,
		})
	}
	return NewStatic(profiles...), nil
}

func (s *Static) Lookup(_ context.Context, userID string) (domain.Profile, error) {
	p, ok := s.byID[userID]
	if !ok {
		return domain.Profile{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, userID)
	}
	return p, nil
}
