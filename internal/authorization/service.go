// Package authorization guards the admin surface with casbin RBAC. Roles
// arrive from the authenticating proxy; this package only decides.
package authorization

import (
	"context"

	"github.com/smallbiznis/lingohub/internal/errs"
)

const (
	ObjectTier           = "tier"
	ObjectSettings       = "settings"
	ObjectReconciliation = "reconciliation"
	ObjectViolation      = "violation"
	ObjectBooking        = "booking"
)

const (
	ActionTierView    = "tier.view"
	ActionTierManage  = "tier.manage"
	ActionTierReprice = "tier.reprice"

	ActionSettingsView   = "settings.view"
	ActionSettingsUpdate = "settings.update"

	ActionReconciliationAudit  = "reconciliation.audit"
	ActionReconciliationRepair = "reconciliation.repair"
	ActionViolationView        = "violation.view"

	ActionBookingCleanup = "booking.cleanup"
)

const (
	RoleViewer  = "viewer"
	RoleFinance = "finance"
	RoleAdmin   = "admin"
	RoleOwner   = "owner"
	RoleSystem  = "system"
)

var (
	ErrInvalidActor  = errs.New(errs.Forbidden, "invalid_actor")
	ErrInvalidObject = errs.New(errs.Validation, "invalid_object")
	ErrInvalidAction = errs.New(errs.Validation, "invalid_action")
	ErrForbidden     = errs.New(errs.Forbidden, "forbidden")
)

type Service interface {
	// Authorize checks role against object and action. An unknown role is
	// treated as having no permissions.
	Authorize(ctx context.Context, role string, object string, action string) error
}
