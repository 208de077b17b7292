package service

import (
	"context"
	"fmt"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/scope"
)

// VisibilityResolver turns the authenticated principal into the row filter
// the repositories apply. Every listing, aggregate and export path funnels
// through here so a user can never see more in one view than in another.
type VisibilityResolver struct {
	scopes *scope.Resolver
}

func NewVisibilityResolver(scopes *scope.Resolver) *VisibilityResolver {
	return &VisibilityResolver{scopes: scopes}
}

// Resolve computes the visibility for the user on the request context.
func (r *VisibilityResolver) Resolve(ctx context.Context) (repository.Visibility, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return repository.Visibility{}, ErrUnauthorized
	}

	v := repository.Visibility{
		UserID: userCtx.UserID,
		Role:   userCtx.EffectiveRole(),
	}

	if scope.IsScopedRole(v.Role) {
		ids, err := r.scopes.ScopedProjectIDs(ctx, userCtx.ToUser())
		if err != nil {
			return repository.Visibility{}, fmt.Errorf("resolve project scope: %w", err)
		}
		v.ScopedProjects = ids
	}

	return v, nil
}
