package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/scope"
	"github.com/ahc-eng/payflow-api/internal/service"
	"github.com/ahc-eng/payflow-api/internal/testutil"
)

func newDashboard(t *testing.T, fx *paymentFixture, ttl time.Duration) *service.DashboardService {
	t.Helper()
	return service.NewDashboardService(
		repository.NewPaymentRepository(fx.db),
		repository.NewNotificationRepository(fx.db),
		fx.payments,
		service.NewVisibilityResolver(scope.NewResolver(fx.db, scope.DetectCapabilities(fx.db), zap.NewNop())),
		newSLA(),
		ttl,
		zap.NewNop(),
	)
}

func TestChipCounts(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db
	dashboard := newDashboard(t, fx, time.Minute)

	project := testutil.CreateProject(t, db, "Dry Dock")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	supplier := testutil.CreateSupplier(t, db, "Dock AS")

	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingFinance, "100.00")
	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusReadyForPayment, "200.00")
	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingPM, "300.00")

	chips, err := dashboard.ChipCounts(asUser(finance))
	require.NoError(t, err)
	// Finance acts on pending_finance and ready_for_payment.
	assert.Equal(t, 2, chips.ActionRequired)
	assert.Zero(t, chips.UnreadNotices)

	// A new payment inside the TTL is not reflected in the cached counts.
	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingFinance, "400.00")
	chips, err = dashboard.ChipCounts(asUser(finance))
	require.NoError(t, err)
	assert.Equal(t, 2, chips.ActionRequired)

	// A zero TTL dashboard recounts every call.
	fresh := newDashboard(t, fx, 0)
	chips, err = fresh.ChipCounts(asUser(finance))
	require.NoError(t, err)
	assert.Equal(t, 3, chips.ActionRequired)
}

func TestDashboardMetrics(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db
	dashboard := newDashboard(t, fx, time.Minute)

	project := testutil.CreateProject(t, db, "Warehouse")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	supplier := testutil.CreateSupplier(t, db, "Racks AS")

	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingPM, "100.00")
	testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPaid, "250.00")

	metrics, err := dashboard.Metrics(asUser(admin))
	require.NoError(t, err)
	assert.Equal(t, int64(2), metrics.TotalRequests)
	assert.Len(t, metrics.StatusBreakdown, len(domain.AllPaymentStatuses))
	assert.Len(t, metrics.RecentPayments, 2)
	assert.True(t, metrics.PaidAmount.Equal(decimal.RequireFromString("250.00")))
}

func TestStageDurationReport(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db
	dashboard := newDashboard(t, fx, time.Minute)

	project := testutil.CreateProject(t, db, "Breakwater")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	supplier := testutil.CreateSupplier(t, db, "Stone AS")

	// Well beyond a single listing page; the report must cover all of them.
	inFlight := repository.MaxPageSize + 5
	for i := 0; i < inFlight; i++ {
		testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingPM, "10.00")
	}

	// One aged payment carrying a trail: two days in draft, one in
	// pending_pm, now ten days into pending_finance against a 3-day limit.
	aged := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingFinance, "9000.00")
	created := time.Now().UTC().Add(-13 * 24 * time.Hour)
	entered := time.Now().UTC().Add(-10 * 24 * time.Hour)
	require.NoError(t, db.Model(&domain.PaymentRequest{}).
		Where("id = ?", aged.ID).
		UpdateColumns(map[string]interface{}{"created_at": created, "updated_at": entered}).Error)

	draft := domain.StatusDraft
	pendingPM := domain.StatusPendingPM
	require.NoError(t, db.Create(&domain.PaymentApproval{
		ID:               uuid.New(),
		PaymentRequestID: aged.ID,
		Step:             domain.StepEngineer,
		Action:           domain.ActionSubmit,
		OldStatus:        &draft,
		NewStatus:        domain.StatusPendingPM,
		DecidedAt:        created.Add(2 * 24 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&domain.PaymentApproval{
		ID:               uuid.New(),
		PaymentRequestID: aged.ID,
		Step:             domain.StepPM,
		Action:           domain.ActionApprove,
		OldStatus:        &pendingPM,
		NewStatus:        domain.StatusPendingEng,
		DecidedAt:        created.Add(3 * 24 * time.Hour),
	}).Error)

	report, err := dashboard.StageDurations(asUser(admin))
	require.NoError(t, err)

	// Every in-flight payment is in the report, not just the first page.
	require.Len(t, report.Rows, inFlight+1)
	assert.Equal(t, aged.ID, report.Rows[0].PaymentID)
	assert.Equal(t, 7, report.Rows[0].DaysOverdue)

	averagesByStage := make(map[domain.PaymentStatus]domain.StageAverageDTO)
	for _, avg := range report.StageAverages {
		averagesByStage[avg.Status] = avg
	}
	require.Contains(t, averagesByStage, domain.StatusDraft)
	assert.InDelta(t, 2.0, averagesByStage[domain.StatusDraft].AverageDays, 0.01)
	require.Contains(t, averagesByStage, domain.StatusPendingPM)
	assert.InDelta(t, 1.0, averagesByStage[domain.StatusPendingPM].AverageDays, 0.01)

	require.Len(t, report.OverdueByStage, 1)
	assert.Equal(t, domain.StatusPendingFinance, report.OverdueByStage[0].Status)
	assert.Equal(t, 1, report.OverdueByStage[0].Overdue)
	assert.Equal(t, domain.StatusPendingFinance, report.WorstStage)
}
