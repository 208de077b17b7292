package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID   uuid.UUID
	FullName string
	Email    string
	Role     domain.RoleName
	// ProjectID carries the legacy single-project assignment for scope
	// fallback; nil for multi-project and unscoped users.
	ProjectID *uuid.UUID
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// EffectiveRole returns the role used for permission checks.
func (u *UserContext) EffectiveRole() domain.RoleName {
	return u.Role.Normalized()
}

// IsAdmin reports whether the user bypasses role allow-lists.
func (u *UserContext) IsAdmin() bool {
	return u.EffectiveRole() == domain.RoleAdmin
}

// IsChairman reports whether the user is limited to read operations.
func (u *UserContext) IsChairman() bool {
	return u.EffectiveRole() == domain.RoleChairman
}

// HasAnyRole checks if the user's effective role is in the given set. Admin
// always passes.
func (u *UserContext) HasAnyRole(roles ...domain.RoleName) bool {
	effective := u.EffectiveRole()
	if effective == domain.RoleAdmin {
		return true
	}
	for _, role := range roles {
		if effective == role.Normalized() {
			return true
		}
	}
	return false
}

// ToUser converts the context principal into a minimal domain.User for
// components (scope resolver, visibility filters) that work on the model
// type.
func (u *UserContext) ToUser() *domain.User {
	return &domain.User{
		BaseModel: domain.BaseModel{ID: u.UserID},
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		ProjectID: u.ProjectID,
	}
}
