package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/testutil"
)

func TestPaymentVisibility(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	projectA := testutil.CreateProject(t, db, "Harbor Expansion")
	projectB := testutil.CreateProject(t, db, "Depot Renovation")
	supplier := testutil.CreateSupplier(t, db, "Concrete Works Ltd")

	engineer := testutil.CreateUser(t, db, "Engineer", domain.RoleEngineer)
	pm := testutil.CreateUser(t, db, "PM", domain.RoleProjectManager)
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)

	testutil.CreatePayment(t, db, projectA, supplier, engineer, domain.StatusPendingPM, "1000.00")
	testutil.CreatePayment(t, db, projectB, supplier, pm, domain.StatusPendingFinance, "2500.00")
	procurementRow := testutil.CreatePayment(t, db, projectA, supplier, pm, domain.StatusPendingPM, "300.00")
	procurementRow.RequestType = domain.RequestTypeProcurement
	require.NoError(t, db.Save(procurementRow).Error)
	ready := testutil.CreatePayment(t, db, projectB, supplier, pm, domain.StatusReadyForPayment, "800.00")
	_ = ready

	t.Run("admin sees everything", func(t *testing.T) {
		rows, total, err := repo.List(ctx, repository.Visibility{UserID: admin.ID, Role: domain.RoleAdmin}, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 4, total)
		assert.Len(t, rows, 4)
	})

	t.Run("pm scoped to one project", func(t *testing.T) {
		v := repository.Visibility{UserID: pm.ID, Role: domain.RoleProjectManager, ScopedProjects: []uuid.UUID{projectA.ID}}
		rows, total, err := repo.List(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		for _, row := range rows {
			assert.Equal(t, projectA.ID, row.ProjectID)
		}
	})

	t.Run("pm with no scope sees nothing", func(t *testing.T) {
		v := repository.Visibility{UserID: pm.ID, Role: domain.RoleProjectManager}
		_, total, err := repo.List(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
	})

	t.Run("engineer without scope falls back to own requests", func(t *testing.T) {
		v := repository.Visibility{UserID: engineer.ID, Role: domain.RoleEngineer}
		rows, total, err := repo.List(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, rows, 1)
		assert.Equal(t, engineer.ID, *rows[0].CreatedBy)
	})

	t.Run("procurement sees only procurement rows in scope", func(t *testing.T) {
		v := repository.Visibility{UserID: pm.ID, Role: domain.RoleProcurement, ScopedProjects: []uuid.UUID{projectA.ID, projectB.ID}}
		rows, total, err := repo.List(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.RequestTypeProcurement, rows[0].RequestType)
	})

	t.Run("payment notifier sees payable statuses only", func(t *testing.T) {
		v := repository.Visibility{UserID: admin.ID, Role: domain.RolePaymentNotifier}
		rows, total, err := repo.List(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.StatusReadyForPayment, rows[0].Status)
	})

	t.Run("unknown role sees nothing", func(t *testing.T) {
		v := repository.Visibility{UserID: admin.ID, Role: domain.RoleDC}
		_, total, err := repo.List(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
	})
}

func TestPaymentListFiltersAndPagination(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	project := testutil.CreateProject(t, db, "Substation Upgrade")
	supplier := testutil.CreateSupplier(t, db, "Voltage Partners")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	v := repository.Visibility{UserID: admin.ID, Role: domain.RoleAdmin}

	for i := 0; i < 25; i++ {
		testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingPM, "100.00")
	}
	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPaid, "9999.00")

	t.Run("status filter", func(t *testing.T) {
		status := domain.StatusPaid
		rows, total, err := repo.List(ctx, v, repository.PaymentFilters{Status: &status})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("9999.00")))
	})

	t.Run("amount range filter", func(t *testing.T) {
		min := decimal.RequireFromString("5000")
		_, total, err := repo.List(ctx, v, repository.PaymentFilters{AmountMin: &min})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
	})

	t.Run("default page size caps the result", func(t *testing.T) {
		rows, total, err := repo.List(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.EqualValues(t, 26, total)
		assert.Len(t, rows, repository.DefaultPageSize)
	})

	t.Run("second page holds the remainder", func(t *testing.T) {
		rows, _, err := repo.List(ctx, v, repository.PaymentFilters{Page: 2})
		require.NoError(t, err)
		assert.Len(t, rows, 6)
	})

	t.Run("oversized page size is clamped", func(t *testing.T) {
		rows, _, err := repo.List(ctx, v, repository.PaymentFilters{PageSize: 10000})
		require.NoError(t, err)
		assert.Len(t, rows, 26)
	})
}

func TestPaymentStats(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	project := testutil.CreateProject(t, db, "Bridge Works")
	supplier := testutil.CreateSupplier(t, db, "Steel & Sons")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	v := repository.Visibility{UserID: admin.ID, Role: domain.RoleAdmin}

	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingPM, "100.00")
	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingPM, "200.00")
	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPaid, "300.00")
	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusRejected, "50.00")

	t.Run("status counts are zero filled", func(t *testing.T) {
		counts, err := repo.StatusCounts(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		byStatus := make(map[domain.PaymentStatus]int64, len(counts))
		for _, c := range counts {
			byStatus[c.Status] = c.Count
		}
		assert.EqualValues(t, 2, byStatus[domain.StatusPendingPM])
		assert.EqualValues(t, 1, byStatus[domain.StatusPaid])
		assert.EqualValues(t, 0, byStatus[domain.StatusDraft])
		assert.Len(t, counts, len(domain.AllPaymentStatuses))
	})

	t.Run("amount totals split paid and pending", func(t *testing.T) {
		totals, err := repo.Totals(ctx, v, repository.PaymentFilters{})
		require.NoError(t, err)
		assert.True(t, totals.TotalAmount.Equal(decimal.RequireFromString("650")))
		assert.True(t, totals.PaidAmount.Equal(decimal.RequireFromString("300")))
		assert.True(t, totals.PendingAmount.Equal(decimal.RequireFromString("300")))
		assert.True(t, totals.RejectedAmount.Equal(decimal.RequireFromString("50")))
	})
}

func TestListStaleDrafts(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	project := testutil.CreateProject(t, db, "Warehouse")
	supplier := testutil.CreateSupplier(t, db, "Pallets Inc")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)

	old := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusDraft, "10.00")
	require.NoError(t, db.Model(old).Update("created_at", time.Now().AddDate(0, 0, -120)).Error)

	resubmitted := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusDraft, "20.00")
	recent := time.Now().AddDate(0, 0, -5)
	require.NoError(t, db.Model(resubmitted).Updates(map[string]interface{}{
		"created_at":         time.Now().AddDate(0, 0, -120),
		"submitted_to_pm_at": recent,
	}).Error)

	fresh := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusDraft, "30.00")
	_ = fresh

	stale, err := repo.ListStaleDrafts(ctx, time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}
