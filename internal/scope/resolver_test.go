package scope_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/scope"
	"github.com/ahc-eng/payflow-api/internal/testutil"
)

func TestDetectCapabilities(t *testing.T) {
	db := testutil.OpenTestDB(t)
	caps := scope.DetectCapabilities(db)
	assert.True(t, caps.AssignmentTable)
	assert.True(t, caps.RoleColumn)
}

func TestScopedProjectIDs(t *testing.T) {
	db := testutil.OpenTestDB(t)
	resolver := scope.NewResolver(db, scope.DetectCapabilities(db), zap.NewNop())
	ctx := context.Background()

	projectA := testutil.CreateProject(t, db, "Harbor Tower")
	projectB := testutil.CreateProject(t, db, "North Bridge")
	projectC := testutil.CreateProject(t, db, "Depot Upgrade")

	t.Run("role-scoped assignments win", func(t *testing.T) {
		user := testutil.CreateUser(t, db, "PM One", domain.RoleProjectManager)
		pmRole := domain.RoleProjectManager
		engRole := domain.RoleEngineer
		testutil.AssignProject(t, db, user, projectA, &pmRole)
		testutil.AssignProject(t, db, user, projectB, &engRole)

		ids, err := resolver.ScopedProjectIDs(ctx, user)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
		assert.Equal(t, projectA.ID, ids[0])
	})

	t.Run("falls back to role-less rows", func(t *testing.T) {
		user := testutil.CreateUser(t, db, "PM Two", domain.RoleProjectManager)
		testutil.AssignProject(t, db, user, projectB, nil)

		ids, err := resolver.ScopedProjectIDs(ctx, user)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
		assert.Equal(t, projectB.ID, ids[0])
	})

	t.Run("falls back to legacy project column", func(t *testing.T) {
		user := testutil.CreateUser(t, db, "Eng One", domain.RoleEngineer)
		user.ProjectID = &projectC.ID
		require.NoError(t, db.Save(user).Error)

		ids, err := resolver.ScopedProjectIDs(ctx, user)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
		assert.Equal(t, projectC.ID, ids[0])
	})

	t.Run("empty scope stays empty", func(t *testing.T) {
		user := testutil.CreateUser(t, db, "Eng Two", domain.RoleEngineer)
		ids, err := resolver.ScopedProjectIDs(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("project_engineer normalizes to engineer", func(t *testing.T) {
		user := testutil.CreateUser(t, db, "PE One", domain.RoleProjectEngineer)
		engRole := domain.RoleEngineer
		testutil.AssignProject(t, db, user, projectA, &engRole)

		ids, err := resolver.ScopedProjectIDs(ctx, user)
		require.NoError(t, err)
		assert.Len(t, ids, 1)
		assert.Equal(t, projectA.ID, ids[0])
	})

	t.Run("non-scoped roles resolve empty", func(t *testing.T) {
		user := testutil.CreateUser(t, db, "Finance One", domain.RoleFinance)
		user.ProjectID = &projectA.ID
		require.NoError(t, db.Save(user).Error)

		ids, err := resolver.ScopedProjectIDs(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestIsScopedRole(t *testing.T) {
	assert.True(t, scope.IsScopedRole(domain.RoleProjectManager))
	assert.True(t, scope.IsScopedRole(domain.RoleEngineer))
	assert.True(t, scope.IsScopedRole(domain.RoleProjectEngineer))
	assert.True(t, scope.IsScopedRole(domain.RoleProcurement))
	assert.False(t, scope.IsScopedRole(domain.RoleFinance))
	assert.False(t, scope.IsScopedRole(domain.RoleAdmin))
	assert.False(t, scope.IsScopedRole(domain.RoleChairman))
}
