package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/testutil"
)

func TestGetByBONumber(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewPurchaseOrderRepository(db)
	ctx := context.Background()

	project := testutil.CreateProject(t, db, "Terminal 2")
	supplier := testutil.CreateSupplier(t, db, "Gate Systems")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	po := testutil.CreatePurchaseOrder(t, db, project, supplier, admin, "BO-2024-001", "50000.00")

	t.Run("matches case insensitively", func(t *testing.T) {
		found, err := repo.GetByBONumber(ctx, "  bo-2024-001 ")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, po.ID, found.ID)
	})

	t.Run("returns nil for unknown numbers", func(t *testing.T) {
		found, err := repo.GetByBONumber(ctx, "BO-9999-999")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestPurchaseOrderVisibility(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewPurchaseOrderRepository(db)
	ctx := context.Background()

	projectA := testutil.CreateProject(t, db, "North Yard")
	projectB := testutil.CreateProject(t, db, "South Yard")
	supplier := testutil.CreateSupplier(t, db, "Yard Supplies")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	procurement := testutil.CreateUser(t, db, "Buyer", domain.RoleProcurement)

	testutil.CreatePurchaseOrder(t, db, projectA, supplier, admin, "BO-A-1", "1000.00")
	testutil.CreatePurchaseOrder(t, db, projectB, supplier, admin, "BO-B-1", "2000.00")

	t.Run("admin sees all orders", func(t *testing.T) {
		_, total, err := repo.List(ctx, repository.Visibility{UserID: admin.ID, Role: domain.RoleAdmin}, repository.PurchaseOrderFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
	})

	t.Run("procurement scoped to its projects", func(t *testing.T) {
		v := repository.Visibility{
			UserID:         procurement.ID,
			Role:           domain.RoleProcurement,
			ScopedProjects: []uuid.UUID{projectA.ID},
		}
		orders, total, err := repo.List(ctx, v, repository.PurchaseOrderFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, orders, 1)
		assert.Equal(t, "BO-A-1", orders[0].BONumber)
	})

	t.Run("procurement without scope sees nothing", func(t *testing.T) {
		v := repository.Visibility{UserID: procurement.ID, Role: domain.RoleProcurement}
		_, total, err := repo.List(ctx, v, repository.PurchaseOrderFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
	})
}

func TestPurchaseOrderAmountInvariant(t *testing.T) {
	po := &domain.PurchaseOrder{
		TotalAmount:    decimal.RequireFromString("1000"),
		AdvanceAmount:  decimal.RequireFromString("200"),
		ReservedAmount: decimal.RequireFromString("300"),
		PaidAmount:     decimal.RequireFromString("100"),
	}
	po.RecalculateRemaining()

	assert.True(t, po.RemainingAmount.Equal(decimal.RequireFromString("400")))
	assert.NoError(t, po.ValidateAmounts())

	po.AdvanceAmount = decimal.RequireFromString("1500")
	assert.Error(t, po.ValidateAmounts())
}
