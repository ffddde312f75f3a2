// Package stats serves the provider dashboard counters.
package stats

import (
	"context"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/store"
)

type Service struct {
	store store.Repository
}

func NewService(st store.Repository) *Service {
	return &Service{store: st}
}

// ForProvider returns the counters for providerID. Providers always get their
// own; an admin must name the provider.
func (s *Service) ForProvider(ctx context.Context, actor domain.Actor, providerID string) (*domain.ProviderStatistics, error) {
	switch {
	case actor.IsProvider():
		if providerID != "" && providerID != actor.UserID {
			return nil, apperr.Forbidden("providers can only view their own statistics")
		}
		providerID = actor.UserID
	case actor.IsAdmin():
		if providerID == "" {
			return nil, apperr.Validation("invalid request", map[string]string{"providerId": "is required"})
		}
	default:
		return nil, apperr.Forbidden("only providers and admins can view statistics")
	}

	st, err := s.store.ProviderStatistics(ctx, providerID)
	if err != nil {
		return nil, apperr.Unexpected("provider statistics", err)
	}
	return st, nil
}
