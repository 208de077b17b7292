package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/ledger"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/service"
	"github.com/ahc-eng/payflow-api/internal/testutil"
)

type stubSettlements struct {
	enabled bool
	rows    []ledger.SettledRow
	err     error
}

func (s *stubSettlements) IsEnabled() bool { return s.enabled }

func (s *stubSettlements) SupplierSettlements(_ context.Context, _, _ time.Time) ([]ledger.SettledRow, error) {
	return s.rows, s.err
}

func newReconciliation(t *testing.T, fx *paymentFixture, settlements service.SettlementSource) *service.ReconciliationService {
	t.Helper()
	return service.NewReconciliationService(repository.NewPaymentRepository(fx.db), settlements, zap.NewNop())
}

func TestReconciliationReport(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Breakwater")
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	concrete := testutil.CreateSupplier(t, db, "Marine Concrete AS")
	steel := testutil.CreateSupplier(t, db, "Nordic Steel AS")

	testutil.CreatePayment(t, db, project, concrete, finance, domain.StatusPaid, "1000.00")
	testutil.CreatePayment(t, db, project, concrete, finance, domain.StatusPaid, "500.00")
	testutil.CreatePayment(t, db, project, steel, finance, domain.StatusPaid, "200.00")
	// Not yet settled, must not count.
	testutil.CreatePayment(t, db, project, steel, finance, domain.StatusPendingFinance, "9999.00")

	// The ledger agrees on concrete (name differs only in case and spacing),
	// underbooks steel and carries one supplier this system never saw.
	settlements := &stubSettlements{enabled: true, rows: []ledger.SettledRow{
		{SupplierName: "marine  concrete as", InvoiceCount: 2, SettledAmount: decimal.RequireFromString("1500.00")},
		{SupplierName: "Nordic Steel AS", InvoiceCount: 1, SettledAmount: decimal.RequireFromString("150.00")},
		{SupplierName: "Ghost Logistics AS", InvoiceCount: 1, SettledAmount: decimal.RequireFromString("75.00")},
	}}
	svc := newReconciliation(t, fx, settlements)

	now := time.Now().UTC()
	report, err := svc.Report(asUser(finance), now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, report.Lines, 3)
	assert.Equal(t, 1, report.MatchedCount)
	assert.Equal(t, 2, report.MismatchedCount)

	// Mismatches come first, largest ledger volume on top.
	assert.Equal(t, "Nordic Steel AS", report.Lines[0].SupplierName)
	assert.True(t, report.Lines[0].Difference.Equal(decimal.RequireFromString("-50.00")))
	assert.False(t, report.Lines[0].Matched)

	assert.Equal(t, "Ghost Logistics AS", report.Lines[1].SupplierName)
	assert.Nil(t, report.Lines[1].SupplierID)
	assert.True(t, report.Lines[1].SystemAmount.IsZero())
	assert.True(t, report.Lines[1].Difference.Equal(decimal.RequireFromString("75.00")))

	matched := report.Lines[2]
	assert.Equal(t, "Marine Concrete AS", matched.SupplierName)
	require.NotNil(t, matched.SupplierID)
	assert.Equal(t, concrete.ID, *matched.SupplierID)
	assert.Equal(t, int64(2), matched.SystemCount)
	assert.True(t, matched.Matched)
	assert.True(t, matched.Difference.IsZero())
}

func TestReconciliationUsesFinanceAmount(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Slipway")
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	supplier := testutil.CreateSupplier(t, db, "Dredging AS")

	payment := testutil.CreatePayment(t, db, project, supplier, finance, domain.StatusPaid, "300.00")
	adjusted := decimal.RequireFromString("280.00")
	require.NoError(t, db.Model(payment).Update("finance_amount", adjusted).Error)

	settlements := &stubSettlements{enabled: true, rows: []ledger.SettledRow{
		{SupplierName: "Dredging AS", InvoiceCount: 1, SettledAmount: adjusted},
	}}
	svc := newReconciliation(t, fx, settlements)

	now := time.Now().UTC()
	report, err := svc.Report(asUser(finance), now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assert.True(t, report.Lines[0].SystemAmount.Equal(adjusted))
	assert.True(t, report.Lines[0].Matched)
}

func TestReconciliationAccessControl(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db
	svc := newReconciliation(t, fx, &stubSettlements{enabled: true})

	now := time.Now().UTC()
	from, to := now.Add(-time.Hour), now

	engineer := testutil.CreateUser(t, db, "Engineer", domain.RoleEngineer)
	_, err := svc.Report(asUser(engineer), from, to)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	_, err = svc.Report(asUser(admin), from, to)
	assert.NoError(t, err)

	_, err = svc.Report(context.Background(), from, to)
	assert.ErrorIs(t, err, service.ErrUserContextRequired)
}

func TestReconciliationLedgerDisabled(t *testing.T) {
	fx := newPaymentFixture(t)
	finance := testutil.CreateUser(t, fx.db, "Finance", domain.RoleFinance)

	now := time.Now().UTC()
	svc := newReconciliation(t, fx, &stubSettlements{enabled: false})
	_, err := svc.Report(asUser(finance), now.Add(-time.Hour), now)
	assert.ErrorIs(t, err, service.ErrLedgerDisabled)

	svc = newReconciliation(t, fx, &stubSettlements{enabled: true})
	_, err = svc.Report(asUser(finance), now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}
