package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahc-eng/payflow-api/internal/auth"
	"github.com/ahc-eng/payflow-api/internal/config"
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
	"github.com/ahc-eng/payflow-api/internal/scope"
	"github.com/ahc-eng/payflow-api/internal/service"
	"github.com/ahc-eng/payflow-api/internal/testutil"
	"github.com/ahc-eng/payflow-api/internal/workflow"
)

type paymentFixture struct {
	db       *gorm.DB
	payments *service.PaymentService
	orders   *service.PurchaseOrderService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	logger := zap.NewNop()

	paymentRepo := repository.NewPaymentRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	resolver := scope.NewResolver(db, scope.DetectCapabilities(db), logger)
	visibility := service.NewVisibilityResolver(resolver)
	suppliers := service.NewSupplierService(supplierRepo, logger)
	notifications := service.NewNotificationService(notificationRepo, userRepo, logger)
	sla := service.NewSLAService(&config.SLAConfig{
		PendingPMDays:       3,
		PendingEngDays:      4,
		PendingFinanceDays:  3,
		ReadyForPaymentDays: 2,
	})

	payments := service.NewPaymentService(db, paymentRepo, poRepo, projectRepo,
		suppliers, visibility, sla, notifications, logger)
	orders := service.NewPurchaseOrderService(db, poRepo, projectRepo,
		suppliers, visibility, userRepo, notifications, logger)

	return &paymentFixture{db: db, payments: payments, orders: orders}
}

func asUser(u *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:   u.ID,
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
	})
}

func TestPaymentApprovalChain(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Quay Extension")
	engineer := testutil.CreateUser(t, db, "Engineer", domain.RoleEngineer)
	pm := testutil.CreateUser(t, db, "PM", domain.RoleProjectManager)
	engManager := testutil.CreateUser(t, db, "Eng Manager", domain.RoleEngineeringManager)
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	testutil.AssignProject(t, db, engineer, project, nil)
	testutil.AssignProject(t, db, pm, project, nil)

	dto, err := fx.payments.Create(asUser(engineer), &domain.CreatePaymentRequest{
		ProjectID:    project.ID,
		SupplierName: "Marine Concrete AS",
		RequestType:  domain.RequestTypeContractor,
		Amount:       decimal.RequireFromString("120000.00"),
		Description:  "Progress payment 3",
		SubmitNow:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingPM, dto.Status)
	require.NotNil(t, dto.SubmittedToPMAt)

	dto, err = fx.payments.Transition(asUser(pm), dto.ID, domain.StatusPendingEng, &domain.PaymentDecisionRequest{Comment: "looks right"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingEng, dto.Status)

	dto, err = fx.payments.Transition(asUser(engManager), dto.ID, domain.StatusPendingFinance, &domain.PaymentDecisionRequest{})
	require.NoError(t, err)

	financeAmount := decimal.RequireFromString("118000.00")
	dto, err = fx.payments.Transition(asUser(finance), dto.ID, domain.StatusReadyForPayment, &domain.PaymentDecisionRequest{FinanceAmount: &financeAmount})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReadyForPayment, dto.Status)
	require.NotNil(t, dto.FinanceAmount)
	assert.True(t, dto.FinanceAmount.Equal(financeAmount))

	dto, err = fx.payments.Transition(asUser(finance), dto.ID, domain.StatusPaid, &domain.PaymentDecisionRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, dto.Status)

	// Full trail: submit, three approvals, mark paid.
	require.Len(t, dto.Approvals, 5)
	assert.Equal(t, domain.ActionSubmit, dto.Approvals[0].Action)
	assert.Equal(t, domain.ActionMarkPaid, dto.Approvals[4].Action)
	require.NotNil(t, dto.FinanceDiff)
	assert.True(t, dto.FinanceDiff.Equal(decimal.RequireFromString("-2000.00")))
}

func TestTransitionGuards(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Pump Station")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	chairman := testutil.CreateUser(t, db, "Chairman", domain.RoleChairman)
	supplier := testutil.CreateSupplier(t, db, "Pipes AS")

	t.Run("mark paid requires a finance amount", func(t *testing.T) {
		payment := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusReadyForPayment, "500.00")
		_, err := fx.payments.Transition(asUser(finance), payment.ID, domain.StatusPaid, &domain.PaymentDecisionRequest{})
		assert.ErrorIs(t, err, service.ErrFinanceAmountRequired)
	})

	t.Run("no rejection from ready for payment", func(t *testing.T) {
		payment := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusReadyForPayment, "500.00")
		_, err := fx.payments.Transition(asUser(admin), payment.ID, domain.StatusRejected, &domain.PaymentDecisionRequest{})
		assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	})

	t.Run("chairman cannot act", func(t *testing.T) {
		payment := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingPM, "500.00")
		_, err := fx.payments.Transition(asUser(chairman), payment.ID, domain.StatusPendingEng, &domain.PaymentDecisionRequest{})
		assert.ErrorIs(t, err, workflow.ErrRoleNotAllowed)
	})

	t.Run("terminal states admit no exit", func(t *testing.T) {
		payment := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusRejected, "500.00")
		_, err := fx.payments.Transition(asUser(admin), payment.ID, domain.StatusPendingPM, &domain.PaymentDecisionRequest{})
		assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	})

	t.Run("finance cannot approve the pm stage", func(t *testing.T) {
		payment := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusPendingPM, "500.00")
		_, err := fx.payments.Transition(asUser(finance), payment.ID, domain.StatusPendingEng, &domain.PaymentDecisionRequest{})
		assert.ErrorIs(t, err, workflow.ErrRoleNotAllowed)
	})
}

func TestEditDeletePermissions(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Slipway")
	supplier := testutil.CreateSupplier(t, db, "Winch AS")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	engManager := testutil.CreateUser(t, db, "Eng Manager", domain.RoleEngineeringManager)
	engineer := testutil.CreateUser(t, db, "Engineer", domain.RoleEngineer)
	pm := testutil.CreateUser(t, db, "PM", domain.RoleProjectManager)
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	testutil.AssignProject(t, db, engineer, project, nil)
	testutil.AssignProject(t, db, pm, project, nil)

	edit := func(amount string) *domain.UpdatePaymentRequest {
		return &domain.UpdatePaymentRequest{
			SupplierName: supplier.Name,
			RequestType:  domain.RequestTypeContractor,
			Amount:       decimal.RequireFromString(amount),
		}
	}

	t.Run("engineer edits own draft only", func(t *testing.T) {
		draft := testutil.CreatePayment(t, db, project, supplier, engineer, domain.StatusDraft, "100.00")
		dto, err := fx.payments.Update(asUser(engineer), draft.ID, edit("150.00"))
		require.NoError(t, err)
		assert.True(t, dto.Amount.Equal(decimal.RequireFromString("150.00")))

		submitted := testutil.CreatePayment(t, db, project, supplier, engineer, domain.StatusPendingPM, "100.00")
		_, err = fx.payments.Update(asUser(engineer), submitted.ID, edit("150.00"))
		assert.ErrorIs(t, err, service.ErrPaymentNotEditable)
	})

	t.Run("pm edits own requests through the pm stage", func(t *testing.T) {
		own := testutil.CreatePayment(t, db, project, supplier, pm, domain.StatusPendingPM, "200.00")
		_, err := fx.payments.Update(asUser(pm), own.ID, edit("220.00"))
		require.NoError(t, err)

		decided := testutil.CreatePayment(t, db, project, supplier, pm, domain.StatusPendingEng, "200.00")
		_, err = fx.payments.Update(asUser(pm), decided.ID, edit("220.00"))
		assert.ErrorIs(t, err, service.ErrPaymentNotEditable)

		others := testutil.CreatePayment(t, db, project, supplier, engineer, domain.StatusDraft, "200.00")
		_, err = fx.payments.Update(asUser(pm), others.ID, edit("220.00"))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("eng manager edits anything regardless of state", func(t *testing.T) {
		paid := testutil.CreatePayment(t, db, project, supplier, engineer, domain.StatusPaid, "300.00")
		dto, err := fx.payments.Update(asUser(engManager), paid.ID, edit("310.00"))
		require.NoError(t, err)
		assert.True(t, dto.Amount.Equal(decimal.RequireFromString("310.00")))
	})

	t.Run("finance cannot edit", func(t *testing.T) {
		draft := testutil.CreatePayment(t, db, project, supplier, engineer, domain.StatusDraft, "400.00")
		_, err := fx.payments.Update(asUser(finance), draft.ID, edit("410.00"))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("delete is admin and eng manager only, any state", func(t *testing.T) {
		own := testutil.CreatePayment(t, db, project, supplier, engineer, domain.StatusDraft, "500.00")
		assert.ErrorIs(t, fx.payments.Delete(asUser(engineer), own.ID), service.ErrPermissionDenied)
		assert.ErrorIs(t, fx.payments.Delete(asUser(finance), own.ID), service.ErrPermissionDenied)

		paid := testutil.CreatePayment(t, db, project, supplier, engineer, domain.StatusPaid, "600.00")
		require.NoError(t, fx.payments.Delete(asUser(engManager), paid.ID))
		require.NoError(t, fx.payments.Delete(asUser(admin), own.ID))
	})
}

func TestNotificationFanOut(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Crane Rail")
	otherProject := testutil.CreateProject(t, db, "Elsewhere")
	engineer := testutil.CreateUser(t, db, "Engineer", domain.RoleEngineer)
	pmAssigned := testutil.CreateUser(t, db, "PM assigned", domain.RoleProjectManager)
	pmOther := testutil.CreateUser(t, db, "PM other", domain.RoleProjectManager)
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	testutil.AssignProject(t, db, pmAssigned, project, nil)
	testutil.AssignProject(t, db, pmOther, otherProject, nil)

	dto, err := fx.payments.Create(asUser(engineer), &domain.CreatePaymentRequest{
		ProjectID:    project.ID,
		SupplierName: "Rail Partners",
		RequestType:  domain.RequestTypeContractor,
		Amount:       decimal.RequireFromString("1000.00"),
		SubmitNow:    true,
	})
	require.NoError(t, err)
	_ = dto

	var notifications []domain.Notification
	require.NoError(t, db.Find(&notifications).Error)

	recipients := make(map[string]int)
	for _, n := range notifications {
		recipients[n.UserID.String()]++
	}

	// Exactly one notification each for the project's PM, admin, and the
	// creator, even though the creator triggered the change. The other
	// project's PM hears nothing.
	assert.Equal(t, 1, recipients[pmAssigned.ID.String()])
	assert.Equal(t, 1, recipients[admin.ID.String()])
	assert.Equal(t, 1, recipients[engineer.ID.String()])
	assert.Zero(t, recipients[pmOther.ID.String()])
	assert.Len(t, notifications, 3)

	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}
	assert.Equal(t, 3, unread)
}

func TestPurchaseOrderReservation(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Substation")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	supplier := testutil.CreateSupplier(t, db, "Switchgear AS")

	po := testutil.CreatePurchaseOrder(t, db, project, supplier, admin, "BO-100", "10000.00")
	require.NoError(t, db.Model(po).Update("status", domain.POStatusFinanceApproved).Error)

	poID := po.ID
	dto, err := fx.payments.Create(asUser(admin), &domain.CreatePaymentRequest{
		ProjectID:       project.ID,
		SupplierName:    supplier.Name,
		RequestType:     domain.RequestTypeProcurement,
		Amount:          decimal.RequireFromString("4000.00"),
		PurchaseOrderID: &poID,
		SubmitNow:       true,
	})
	require.NoError(t, err)

	var reserved domain.PurchaseOrder
	require.NoError(t, db.First(&reserved, "id = ?", po.ID).Error)
	assert.True(t, reserved.ReservedAmount.Equal(decimal.RequireFromString("4000.00")))
	assert.True(t, reserved.RemainingAmount.Equal(decimal.RequireFromString("6000.00")))

	// Walk the payment to paid; reservation converts to paid amount.
	dto, err = fx.payments.Transition(asUser(admin), dto.ID, domain.StatusPendingEng, &domain.PaymentDecisionRequest{})
	require.NoError(t, err)
	dto, err = fx.payments.Transition(asUser(admin), dto.ID, domain.StatusPendingFinance, &domain.PaymentDecisionRequest{})
	require.NoError(t, err)
	financeAmount := decimal.RequireFromString("4000.00")
	dto, err = fx.payments.Transition(asUser(finance), dto.ID, domain.StatusReadyForPayment, &domain.PaymentDecisionRequest{FinanceAmount: &financeAmount})
	require.NoError(t, err)
	_, err = fx.payments.Transition(asUser(finance), dto.ID, domain.StatusPaid, &domain.PaymentDecisionRequest{})
	require.NoError(t, err)

	var settled domain.PurchaseOrder
	require.NoError(t, db.First(&settled, "id = ?", po.ID).Error)
	assert.True(t, settled.ReservedAmount.IsZero())
	assert.True(t, settled.PaidAmount.Equal(financeAmount))
	assert.True(t, settled.RemainingAmount.Equal(decimal.RequireFromString("6000.00")))

	t.Run("overdrawing the order is refused", func(t *testing.T) {
		_, err := fx.payments.Create(asUser(admin), &domain.CreatePaymentRequest{
			ProjectID:       project.ID,
			SupplierName:    supplier.Name,
			RequestType:     domain.RequestTypeProcurement,
			Amount:          decimal.RequireFromString("7000.00"),
			PurchaseOrderID: &poID,
			SubmitNow:       true,
		})
		assert.ErrorIs(t, err, service.ErrInsufficientPOFunds)
	})
}

func TestPurchaseOrderReleaseOnReject(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Conveyor")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	supplier := testutil.CreateSupplier(t, db, "Belts AS")

	po := testutil.CreatePurchaseOrder(t, db, project, supplier, admin, "BO-200", "5000.00")
	require.NoError(t, db.Model(po).Update("status", domain.POStatusFinanceApproved).Error)

	poID := po.ID
	dto, err := fx.payments.Create(asUser(admin), &domain.CreatePaymentRequest{
		ProjectID:       project.ID,
		SupplierName:    supplier.Name,
		RequestType:     domain.RequestTypeProcurement,
		Amount:          decimal.RequireFromString("2000.00"),
		PurchaseOrderID: &poID,
		SubmitNow:       true,
	})
	require.NoError(t, err)

	_, err = fx.payments.Transition(asUser(admin), dto.ID, domain.StatusRejected, &domain.PaymentDecisionRequest{Comment: "duplicate"})
	require.NoError(t, err)

	var released domain.PurchaseOrder
	require.NoError(t, db.First(&released, "id = ?", po.ID).Error)
	assert.True(t, released.ReservedAmount.IsZero())
	assert.True(t, released.RemainingAmount.Equal(decimal.RequireFromString("5000.00")))
}

func TestFinanceAdjustments(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Tank Farm")
	admin := testutil.CreateUser(t, db, "Admin", domain.RoleAdmin)
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	engineer := testutil.CreateUser(t, db, "Engineer", domain.RoleEngineer)
	supplier := testutil.CreateSupplier(t, db, "Tanks AS")

	payment := testutil.CreatePayment(t, db, project, supplier, admin, domain.StatusReadyForPayment, "1000.00")
	amount := decimal.RequireFromString("1000.00")
	require.NoError(t, db.Model(payment).Update("finance_amount", amount).Error)

	dto, err := fx.payments.AddAdjustment(asUser(finance), payment.ID, &domain.CreateFinanceAdjustmentRequest{
		DeltaAmount: decimal.RequireFromString("-150.00"),
		Reason:      "retention",
	})
	require.NoError(t, err)
	require.NotNil(t, dto.FinanceEffective)
	assert.True(t, dto.FinanceEffective.Equal(decimal.RequireFromString("850.00")))

	t.Run("engineer may not adjust", func(t *testing.T) {
		_, err := fx.payments.AddAdjustment(asUser(engineer), payment.ID, &domain.CreateFinanceAdjustmentRequest{
			DeltaAmount: decimal.RequireFromString("10.00"),
			Reason:      "nope",
		})
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("voiding restores the effective amount", func(t *testing.T) {
		adjustmentID := dto.Adjustments[0].ID
		voided, err := fx.payments.VoidAdjustment(asUser(finance), payment.ID, adjustmentID, &domain.VoidFinanceAdjustmentRequest{Reason: "entered twice"})
		require.NoError(t, err)
		require.NotNil(t, voided.FinanceEffective)
		assert.True(t, voided.FinanceEffective.Equal(amount))
		assert.True(t, voided.Adjustments[0].IsVoid)

		_, err = fx.payments.VoidAdjustment(asUser(finance), payment.ID, adjustmentID, &domain.VoidFinanceAdjustmentRequest{Reason: "again"})
		assert.ErrorIs(t, err, service.ErrAdjustmentAlreadyVoid)
	})
}

func TestPurchaseOrderApprovalChain(t *testing.T) {
	fx := newPaymentFixture(t)
	db := fx.db

	project := testutil.CreateProject(t, db, "Jetty")
	procurement := testutil.CreateUser(t, db, "Buyer", domain.RoleProcurement)
	pm := testutil.CreateUser(t, db, "PM", domain.RoleProjectManager)
	engManager := testutil.CreateUser(t, db, "Eng Manager", domain.RoleEngineeringManager)
	finance := testutil.CreateUser(t, db, "Finance", domain.RoleFinance)
	testutil.AssignProject(t, db, procurement, project, nil)
	testutil.AssignProject(t, db, pm, project, nil)

	dto, err := fx.orders.Create(asUser(procurement), &domain.CreatePurchaseOrderRequest{
		BONumber:     "BO-300",
		ProjectID:    project.ID,
		SupplierName: "Piling AS",
		TotalAmount:  decimal.RequireFromString("80000.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusDraft, dto.Status)

	dto, err = fx.orders.Transition(asUser(procurement), dto.ID, domain.POStatusSubmitted, &domain.PurchaseOrderDecisionRequest{})
	require.NoError(t, err)

	// eng manager may act in the PM's stead at the submitted stage
	dto, err = fx.orders.Transition(asUser(engManager), dto.ID, domain.POStatusPMApproved, &domain.PurchaseOrderDecisionRequest{})
	require.NoError(t, err)

	dto, err = fx.orders.Transition(asUser(engManager), dto.ID, domain.POStatusEngApproved, &domain.PurchaseOrderDecisionRequest{})
	require.NoError(t, err)

	dto, err = fx.orders.Transition(asUser(finance), dto.ID, domain.POStatusFinanceApproved, &domain.PurchaseOrderDecisionRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusFinanceApproved, dto.Status)
	assert.Len(t, dto.Decisions, 4)

	t.Run("duplicate bo number is refused", func(t *testing.T) {
		_, err := fx.orders.Create(asUser(procurement), &domain.CreatePurchaseOrderRequest{
			BONumber:     "bo-300",
			ProjectID:    project.ID,
			SupplierName: "Piling AS",
			TotalAmount:  decimal.RequireFromString("100.00"),
		})
		assert.ErrorIs(t, err, service.ErrDuplicateBONumber)
	})
}
