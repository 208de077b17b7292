package workflow

import "github.com/ahc-eng/payflow-api/internal/domain"

// PORule describes a legal purchase order transition.
type PORule struct {
	From   domain.PurchaseOrderStatus
	To     domain.PurchaseOrderStatus
	Action string
	Roles  []domain.RoleName
}

type poKey struct {
	from domain.PurchaseOrderStatus
	to   domain.PurchaseOrderStatus
}

// purchaseOrderRules mirrors the payment chain for purchase orders. The
// engineering manager may act in the project manager's stead at the PM
// stage, in addition to their own stage.
var purchaseOrderRules = map[poKey]PORule{
	{domain.POStatusDraft, domain.POStatusSubmitted}: {
		From: domain.POStatusDraft, To: domain.POStatusSubmitted, Action: "submit",
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleProcurement, domain.RoleEngineeringManager},
	},
	{domain.POStatusSubmitted, domain.POStatusPMApproved}: {
		From: domain.POStatusSubmitted, To: domain.POStatusPMApproved, Action: "approve",
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleProjectManager, domain.RoleEngineeringManager},
	},
	{domain.POStatusSubmitted, domain.POStatusRejected}: {
		From: domain.POStatusSubmitted, To: domain.POStatusRejected, Action: "reject",
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleProjectManager, domain.RoleEngineeringManager},
	},
	{domain.POStatusPMApproved, domain.POStatusEngApproved}: {
		From: domain.POStatusPMApproved, To: domain.POStatusEngApproved, Action: "approve",
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleEngineeringManager},
	},
	{domain.POStatusPMApproved, domain.POStatusRejected}: {
		From: domain.POStatusPMApproved, To: domain.POStatusRejected, Action: "reject",
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleEngineeringManager},
	},
	{domain.POStatusEngApproved, domain.POStatusFinanceApproved}: {
		From: domain.POStatusEngApproved, To: domain.POStatusFinanceApproved, Action: "approve",
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleFinance},
	},
	{domain.POStatusEngApproved, domain.POStatusRejected}: {
		From: domain.POStatusEngApproved, To: domain.POStatusRejected, Action: "reject",
		Roles: []domain.RoleName{domain.RoleAdmin, domain.RoleFinance},
	},
}

// ValidatePO checks a purchase order transition against the table, with the
// same admin-bypass / chairman-read-only semantics as payment transitions.
func ValidatePO(from, to domain.PurchaseOrderStatus, actor domain.RoleName) (PORule, error) {
	rule, ok := purchaseOrderRules[poKey{from, to}]
	if !ok {
		return PORule{}, ErrInvalidTransition
	}
	effective := actor.Normalized()
	if effective == domain.RoleChairman {
		return PORule{}, ErrRoleNotAllowed
	}
	if effective == domain.RoleAdmin {
		return rule, nil
	}
	for _, allowed := range rule.Roles {
		if effective == allowed {
			return rule, nil
		}
	}
	return PORule{}, ErrRoleNotAllowed
}

// allPOStatuses in chain order for deterministic AllowedPOTargets output.
var allPOStatuses = []domain.PurchaseOrderStatus{
	domain.POStatusDraft,
	domain.POStatusSubmitted,
	domain.POStatusPMApproved,
	domain.POStatusEngApproved,
	domain.POStatusFinanceApproved,
	domain.POStatusRejected,
}

// AllowedPOTargets returns the statuses the actor may move the purchase
// order to from its current status.
func AllowedPOTargets(from domain.PurchaseOrderStatus, actor domain.RoleName) []domain.PurchaseOrderStatus {
	var targets []domain.PurchaseOrderStatus
	for _, to := range allPOStatuses {
		if _, err := ValidatePO(from, to, actor); err == nil {
			targets = append(targets, to)
		}
	}
	return targets
}

// PORecipientRoles returns the roles notified when a purchase order lands in
// the given status: the next stage's role plus admin, as for payments.
func PORecipientRoles(to domain.PurchaseOrderStatus) []domain.RoleName {
	switch to {
	case domain.POStatusSubmitted:
		return []domain.RoleName{domain.RoleProjectManager, domain.RoleAdmin}
	case domain.POStatusPMApproved:
		return []domain.RoleName{domain.RoleEngineeringManager, domain.RoleAdmin}
	case domain.POStatusEngApproved:
		return []domain.RoleName{domain.RoleFinance, domain.RoleAdmin}
	case domain.POStatusFinanceApproved:
		return []domain.RoleName{domain.RoleProcurement, domain.RoleAdmin}
	case domain.POStatusRejected:
		return []domain.RoleName{domain.RoleAdmin}
	}
	return nil
}
