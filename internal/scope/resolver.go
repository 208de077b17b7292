// Package scope resolves the set of projects a user may access for a given
// role. Scoping only applies to project_manager, engineer and procurement;
// every other role either sees everything or nothing regardless of
// assignments, which the query layer decides.
package scope

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// Capabilities records which parts of the assignment schema are present.
// Resolved once at startup so rolling upgrades (assignment table or its role
// column not yet migrated) degrade instead of erroring per request.
type Capabilities struct {
	AssignmentTable bool
	RoleColumn      bool
}

// DetectCapabilities inspects the live schema.
func DetectCapabilities(db *gorm.DB) Capabilities {
	caps := Capabilities{}
	migrator := db.Migrator()
	caps.AssignmentTable = migrator.HasTable(&domain.ProjectAssignment{})
	if caps.AssignmentTable {
		caps.RoleColumn = migrator.HasColumn(&domain.ProjectAssignment{}, "role")
	}
	return caps
}

// Resolver computes scoped project id sets.
type Resolver struct {
	db     *gorm.DB
	caps   Capabilities
	logger *zap.Logger
}

// NewResolver creates a resolver with pre-detected capabilities.
func NewResolver(db *gorm.DB, caps Capabilities, logger *zap.Logger) *Resolver {
	return &Resolver{db: db, caps: caps, logger: logger}
}

// scopedRoles are the roles whose visibility is restricted to assigned
// projects.
var scopedRoles = map[domain.RoleName]bool{
	domain.RoleProjectManager: true,
	domain.RoleEngineer:       true,
	domain.RoleProcurement:    true,
}

// IsScopedRole reports whether the role's visibility is assignment-driven.
func IsScopedRole(role domain.RoleName) bool {
	return scopedRoles[role.Normalized()]
}

// ScopedProjectIDs returns the de-duplicated project ids the user may access
// in the given role. For scoped roles an empty result means no access, never
// unrestricted. Non-scoped roles always get an empty result here; their
// defaults live in the query layer.
//
// Lookup order: (user, role) assignments, then role-less assignment rows,
// then any assignment row for the user, then the legacy users.project_id
// column.
func (r *Resolver) ScopedProjectIDs(ctx context.Context, user *domain.User) ([]uuid.UUID, error) {
	role := user.EffectiveRole()
	if !scopedRoles[role] {
		return nil, nil
	}

	if r.caps.AssignmentTable {
		ids, err := r.assignmentProjectIDs(ctx, user.ID, role)
		if err != nil {
			// Schema drift mid-deploy: degrade to the legacy column rather
			// than failing the request.
			r.logger.Warn("assignment lookup failed, using legacy project fallback",
				zap.String("userId", user.ID.String()),
				zap.String("role", string(role)),
				zap.Error(err))
		} else if len(ids) > 0 {
			return dedupe(ids), nil
		}
	}

	if user.ProjectID != nil {
		return []uuid.UUID{*user.ProjectID}, nil
	}
	return nil, nil
}

func (r *Resolver) assignmentProjectIDs(ctx context.Context, userID uuid.UUID, role domain.RoleName) ([]uuid.UUID, error) {
	query := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&domain.ProjectAssignment{})
	}

	if r.caps.RoleColumn {
		var ids []uuid.UUID
		err := query().
			Where("user_id = ? AND role = ?", userID, role).
			Pluck("project_id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("failed to query role-scoped assignments: %w", err)
		}
		if len(ids) > 0 {
			return ids, nil
		}

		// Rows created before the role column existed carry NULL.
		err = query().
			Where("user_id = ? AND role IS NULL", userID).
			Pluck("project_id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("failed to query legacy assignments: %w", err)
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}

	var ids []uuid.UUID
	err := query().
		Where("user_id = ?", userID).
		Pluck("project_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	return ids, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
