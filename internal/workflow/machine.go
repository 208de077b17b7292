package workflow

import (
	"errors"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// Sentinel errors returned by transition validation. Callers map these onto
// HTTP semantics (409 / 403 / 400).
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRoleNotAllowed    = errors.New("role not allowed for transition")
	ErrAmountRequired    = errors.New("a positive finance amount is required")
)

type transitionKey struct {
	from domain.PaymentStatus
	to   domain.PaymentStatus
}

// Rule describes one legal transition: the audit step and action recorded
// for it, the roles allowed to perform it, and whether it carries a
// mandatory finance amount.
type Rule struct {
	From                  domain.PaymentStatus
	To                    domain.PaymentStatus
	Step                  domain.ApprovalStep
	Action                domain.ApprovalAction
	Roles                 []domain.RoleName
	RequiresFinanceAmount bool
}

// paymentRules is the static transition table. Admin passes the role check
// implicitly; it is listed here anyway so the table reads as the full
// authority matrix. Chairman never appears: the role is read-only.
var paymentRules = map[transitionKey]Rule{
	{domain.StatusDraft, domain.StatusPendingPM}: {
		From: domain.StatusDraft, To: domain.StatusPendingPM,
		Step: domain.StepEngineer, Action: domain.ActionSubmit,
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleEngineeringManager, domain.RoleProjectManager, domain.RoleEngineer},
	},
	{domain.StatusPendingPM, domain.StatusPendingEng}: {
		From: domain.StatusPendingPM, To: domain.StatusPendingEng,
		Step: domain.StepPM, Action: domain.ActionApprove,
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleEngineeringManager, domain.RoleProjectManager},
	},
	{domain.StatusPendingPM, domain.StatusRejected}: {
		From: domain.StatusPendingPM, To: domain.StatusRejected,
		Step: domain.StepPM, Action: domain.ActionReject,
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleEngineeringManager, domain.RoleProjectManager},
	},
	{domain.StatusPendingEng, domain.StatusPendingFinance}: {
		From: domain.StatusPendingEng, To: domain.StatusPendingFinance,
		Step: domain.StepEngManager, Action: domain.ActionApprove,
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleEngineeringManager},
	},
	{domain.StatusPendingEng, domain.StatusRejected}: {
		From: domain.StatusPendingEng, To: domain.StatusRejected,
		Step: domain.StepEngManager, Action: domain.ActionReject,
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleEngineeringManager},
	},
	{domain.StatusPendingFinance, domain.StatusReadyForPayment}: {
		From: domain.StatusPendingFinance, To: domain.StatusReadyForPayment,
		Step: domain.StepFinance, Action: domain.ActionApprove,
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleFinance},
	},
	{domain.StatusPendingFinance, domain.StatusRejected}: {
		From: domain.StatusPendingFinance, To: domain.StatusRejected,
		Step: domain.StepFinance, Action: domain.ActionReject,
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleFinance},
	},
	{domain.StatusReadyForPayment, domain.StatusPaid}: {
		From: domain.StatusReadyForPayment, To: domain.StatusPaid,
		Step: domain.StepFinance, Action: domain.ActionMarkPaid,
		Roles:                 []domain.RoleName{domain.RoleAdmin, domain.RoleFinance},
		RequiresFinanceAmount: true,
	},
}

// Validate checks that (from, to) is a legal transition and that the actor's
// role may perform it. Admin is always permitted; chairman never is. The
// returned Rule carries the audit step/action to record.
func Validate(from, to domain.PaymentStatus, actor domain.RoleName) (Rule, error) {
	rule, ok := paymentRules[transitionKey{from, to}]
	if !ok {
		return Rule{}, ErrInvalidTransition
	}
	effective := actor.Normalized()
	if effective == domain.RoleChairman {
		return Rule{}, ErrRoleNotAllowed
	}
	if effective == domain.RoleAdmin {
		return rule, nil
	}
	for _, allowed := range rule.Roles {
		if effective == allowed {
			return rule, nil
		}
	}
	return Rule{}, ErrRoleNotAllowed
}

// AllowedTargets returns the statuses the actor may move a payment in the
// given status to. Used to surface allowed actions on detail responses.
func AllowedTargets(from domain.PaymentStatus, actor domain.RoleName) []domain.PaymentStatus {
	var targets []domain.PaymentStatus
	// Iterate in table-declaration-independent but deterministic order.
	for _, to := range domain.AllPaymentStatuses {
		if _, err := Validate(from, to, actor); err == nil {
			targets = append(targets, to)
		}
	}
	return targets
}

// RecipientRoles returns the primary roles to notify when a payment lands in
// the given status: the next stage's responsible role plus admin, who hears
// about every status change. The dispatcher always adds the payment's
// creator on top of these.
func RecipientRoles(to domain.PaymentStatus) []domain.RoleName {
	switch to {
	case domain.StatusPendingPM:
		return []domain.RoleName{domain.RoleProjectManager, domain.RoleAdmin}
	case domain.StatusPendingEng:
		return []domain.RoleName{domain.RoleEngineeringManager, domain.RoleAdmin}
	case domain.StatusPendingFinance:
		return []domain.RoleName{domain.RoleFinance, domain.RoleAdmin}
	case domain.StatusReadyForPayment:
		return []domain.RoleName{domain.RoleFinance, domain.RolePaymentNotifier, domain.RoleAdmin}
	case domain.StatusPaid:
		return []domain.RoleName{domain.RolePaymentNotifier, domain.RoleAdmin}
	case domain.StatusRejected:
		// The creator hears about a rejection; admin about everything.
		return []domain.RoleName{domain.RoleAdmin}
	}
	return nil
}

// ActionRequiredStatuses returns the payment statuses that count as "waiting
// on you" for a role's inbox and dashboard chips.
func ActionRequiredStatuses(role domain.RoleName) []domain.PaymentStatus {
	switch role.Normalized() {
	case domain.RoleAdmin:
		return []domain.PaymentStatus{
			domain.StatusPendingPM, domain.StatusPendingEng,
			domain.StatusPendingFinance, domain.StatusReadyForPayment,
		}
	case domain.RoleEngineeringManager:
		return []domain.PaymentStatus{domain.StatusPendingPM, domain.StatusPendingEng}
	case domain.RoleProjectManager:
		return []domain.PaymentStatus{domain.StatusPendingPM}
	case domain.RoleFinance:
		return []domain.PaymentStatus{domain.StatusPendingFinance, domain.StatusReadyForPayment}
	}
	return nil
}
