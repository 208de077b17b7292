package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/testutil"
)

func TestGetOrCreateByName(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewSupplierRepository(db)
	ctx := context.Background()

	t.Run("creates on first use with default type", func(t *testing.T) {
		supplier, err := repo.GetOrCreateByName(ctx, "  Nordic   Cement AS ")
		require.NoError(t, err)
		assert.Equal(t, "Nordic Cement AS", supplier.Name)
		assert.Equal(t, domain.DefaultSupplierType, supplier.SupplierType)
	})

	t.Run("case insensitive match reuses the row", func(t *testing.T) {
		first, err := repo.GetOrCreateByName(ctx, "Nordic Cement AS")
		require.NoError(t, err)
		second, err := repo.GetOrCreateByName(ctx, "nordic cement as")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		var count int64
		require.NoError(t, db.Model(&domain.Supplier{}).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})
}

func TestSupplierList(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewSupplierRepository(db)
	ctx := context.Background()

	testutil.CreateSupplier(t, db, "Alpha Piping")
	testutil.CreateSupplier(t, db, "Beta Scaffolding")
	testutil.CreateSupplier(t, db, "Alpine Cranes")

	suppliers, total, err := repo.List(ctx, 1, 20, "alp")
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, suppliers, 2)
	assert.Equal(t, "Alpha Piping", suppliers[0].Name)
	assert.Equal(t, "Alpine Cranes", suppliers[1].Name)
}
