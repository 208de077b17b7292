package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

func TestValidate_HappyPathChain(t *testing.T) {
	steps := []struct {
		from, to domain.PaymentStatus
		actor    domain.RoleName
		step     domain.ApprovalStep
		action   domain.ApprovalAction
	}{
		{domain.StatusDraft, domain.StatusPendingPM, domain.RoleEngineer, domain.StepEngineer, domain.ActionSubmit},
		{domain.StatusPendingPM, domain.StatusPendingEng, domain.RoleProjectManager, domain.StepPM, domain.ActionApprove},
		{domain.StatusPendingEng, domain.StatusPendingFinance, domain.RoleEngineeringManager, domain.StepEngManager, domain.ActionApprove},
		{domain.StatusPendingFinance, domain.StatusReadyForPayment, domain.RoleFinance, domain.StepFinance, domain.ActionApprove},
		{domain.StatusReadyForPayment, domain.StatusPaid, domain.RoleFinance, domain.StepFinance, domain.ActionMarkPaid},
	}

	for _, s := range steps {
		rule, err := Validate(s.from, s.to, s.actor)
		require.NoError(t, err, "%s -> %s as %s", s.from, s.to, s.actor)
		assert.Equal(t, s.step, rule.Step)
		assert.Equal(t, s.action, rule.Action)
	}
}

func TestValidate_RejectBranches(t *testing.T) {
	cases := []struct {
		from  domain.PaymentStatus
		actor domain.RoleName
	}{
		{domain.StatusPendingPM, domain.RoleProjectManager},
		{domain.StatusPendingEng, domain.RoleEngineeringManager},
		{domain.StatusPendingFinance, domain.RoleFinance},
	}
	for _, c := range cases {
		rule, err := Validate(c.from, domain.StatusRejected, c.actor)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionReject, rule.Action)
	}
}

func TestValidate_UnknownTransition(t *testing.T) {
	_, err := Validate(domain.StatusDraft, domain.StatusPendingFinance, domain.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Terminal statuses have no outgoing edges, admin included.
	_, err = Validate(domain.StatusPaid, domain.StatusPendingPM, domain.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Validate(domain.StatusRejected, domain.StatusDraft, domain.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// No reject edge after finance has approved for payment.
	_, err = Validate(domain.StatusReadyForPayment, domain.StatusRejected, domain.RoleFinance)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidate_RoleEnforcement(t *testing.T) {
	t.Run("engineer cannot approve at pm stage", func(t *testing.T) {
		_, err := Validate(domain.StatusPendingPM, domain.StatusPendingEng, domain.RoleEngineer)
		assert.ErrorIs(t, err, ErrRoleNotAllowed)
	})

	t.Run("pm cannot approve at eng stage", func(t *testing.T) {
		_, err := Validate(domain.StatusPendingEng, domain.StatusPendingFinance, domain.RoleProjectManager)
		assert.ErrorIs(t, err, ErrRoleNotAllowed)
	})

	t.Run("eng manager cannot act at finance stage", func(t *testing.T) {
		_, err := Validate(domain.StatusPendingFinance, domain.StatusReadyForPayment, domain.RoleEngineeringManager)
		assert.ErrorIs(t, err, ErrRoleNotAllowed)
	})

	t.Run("admin bypasses role checks but not topology", func(t *testing.T) {
		_, err := Validate(domain.StatusPendingFinance, domain.StatusReadyForPayment, domain.RoleAdmin)
		assert.NoError(t, err)

		_, err = Validate(domain.StatusDraft, domain.StatusPaid, domain.RoleAdmin)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("chairman never transitions", func(t *testing.T) {
		for key := range paymentRules {
			_, err := Validate(key.from, key.to, domain.RoleChairman)
			assert.ErrorIs(t, err, ErrRoleNotAllowed, "%s -> %s", key.from, key.to)
		}
	})

	t.Run("project_engineer normalizes to engineer", func(t *testing.T) {
		_, err := Validate(domain.StatusDraft, domain.StatusPendingPM, domain.RoleProjectEngineer)
		assert.NoError(t, err)
	})
}

func TestValidate_MarkPaidRequiresFinanceAmount(t *testing.T) {
	rule, err := Validate(domain.StatusReadyForPayment, domain.StatusPaid, domain.RoleFinance)
	require.NoError(t, err)
	assert.True(t, rule.RequiresFinanceAmount)

	rule, err = Validate(domain.StatusPendingFinance, domain.StatusReadyForPayment, domain.RoleFinance)
	require.NoError(t, err)
	assert.False(t, rule.RequiresFinanceAmount)
}

func TestAllowedTargets(t *testing.T) {
	assert.Equal(t,
		[]domain.PaymentStatus{domain.StatusPendingEng, domain.StatusRejected},
		AllowedTargets(domain.StatusPendingPM, domain.RoleProjectManager))

	assert.Empty(t, AllowedTargets(domain.StatusPendingPM, domain.RoleEngineer))
	assert.Empty(t, AllowedTargets(domain.StatusPaid, domain.RoleAdmin))
	assert.Empty(t, AllowedTargets(domain.StatusPendingPM, domain.RoleChairman))
}

func TestRecipientRoles(t *testing.T) {
	assert.Equal(t, []domain.RoleName{domain.RoleProjectManager, domain.RoleAdmin}, RecipientRoles(domain.StatusPendingPM))
	assert.Equal(t, []domain.RoleName{domain.RoleEngineeringManager, domain.RoleAdmin}, RecipientRoles(domain.StatusPendingEng))
	assert.Equal(t, []domain.RoleName{domain.RoleFinance, domain.RoleAdmin}, RecipientRoles(domain.StatusPendingFinance))
	assert.Contains(t, RecipientRoles(domain.StatusReadyForPayment), domain.RolePaymentNotifier)

	// Admin hears about every status change, rejection included; the
	// rejected creator is added by the dispatcher.
	for _, status := range []domain.PaymentStatus{
		domain.StatusPendingPM, domain.StatusPendingEng, domain.StatusPendingFinance,
		domain.StatusReadyForPayment, domain.StatusPaid, domain.StatusRejected,
	} {
		assert.Contains(t, RecipientRoles(status), domain.RoleAdmin)
	}
}

func TestActionRequiredStatuses(t *testing.T) {
	assert.Len(t, ActionRequiredStatuses(domain.RoleAdmin), 4)
	assert.Equal(t,
		[]domain.PaymentStatus{domain.StatusPendingPM, domain.StatusPendingEng},
		ActionRequiredStatuses(domain.RoleEngineeringManager))
	assert.Equal(t,
		[]domain.PaymentStatus{domain.StatusPendingFinance, domain.StatusReadyForPayment},
		ActionRequiredStatuses(domain.RoleFinance))
	assert.Empty(t, ActionRequiredStatuses(domain.RoleDC))
	assert.Empty(t, ActionRequiredStatuses(domain.RoleChairman))
}

func TestValidatePO_Chain(t *testing.T) {
	t.Run("full approval chain", func(t *testing.T) {
		chain := []struct {
			from, to domain.PurchaseOrderStatus
			actor    domain.RoleName
		}{
			{domain.POStatusDraft, domain.POStatusSubmitted, domain.RoleProcurement},
			{domain.POStatusSubmitted, domain.POStatusPMApproved, domain.RoleProjectManager},
			{domain.POStatusPMApproved, domain.POStatusEngApproved, domain.RoleEngineeringManager},
			{domain.POStatusEngApproved, domain.POStatusFinanceApproved, domain.RoleFinance},
		}
		for _, c := range chain {
			_, err := ValidatePO(c.from, c.to, c.actor)
			assert.NoError(t, err, "%s -> %s as %s", c.from, c.to, c.actor)
		}
	})

	t.Run("eng manager may act for pm", func(t *testing.T) {
		_, err := ValidatePO(domain.POStatusSubmitted, domain.POStatusPMApproved, domain.RoleEngineeringManager)
		assert.NoError(t, err)
	})

	t.Run("finance cannot skip ahead", func(t *testing.T) {
		_, err := ValidatePO(domain.POStatusSubmitted, domain.POStatusEngApproved, domain.RoleFinance)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("chairman read only", func(t *testing.T) {
		_, err := ValidatePO(domain.POStatusDraft, domain.POStatusSubmitted, domain.RoleChairman)
		assert.ErrorIs(t, err, ErrRoleNotAllowed)
	})
}
