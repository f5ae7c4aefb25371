package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func subject(role string) string {
	return fmt.Sprintf("role:%s", role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Viewer permissions (read-only)
		{subject(RoleViewer), ObjectTier, ActionTierView},
		{subject(RoleViewer), ObjectViolation, ActionViolationView},

		// Finance runs audits and reads settings
		{subject(RoleFinance), ObjectReconciliation, ActionReconciliationAudit},
		{subject(RoleFinance), ObjectSettings, ActionSettingsView},

		// Admin permissions
		{subject(RoleAdmin), ObjectTier, ActionTierManage},
		{subject(RoleAdmin), ObjectSettings, ActionSettingsUpdate},
		{subject(RoleAdmin), ObjectReconciliation, ActionReconciliationRepair},

		// Owner permissions
		{subject(RoleOwner), ObjectTier, ActionTierReprice},
		{subject(RoleOwner), ObjectBooking, ActionBookingCleanup},

		// System permissions (for automated processes)
		{subject(RoleSystem), ObjectReconciliation, ActionReconciliationAudit},
		{subject(RoleSystem), ObjectReconciliation, ActionReconciliationRepair},
		{subject(RoleSystem), ObjectBooking, ActionBookingCleanup},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Each role inherits everything granted to the role below it.
	groupings := [][]string{
		{subject(RoleFinance), subject(RoleViewer)},
		{subject(RoleAdmin), subject(RoleFinance)},
		{subject(RoleOwner), subject(RoleAdmin)},
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping); err != nil {
			return err
		}
	}
	return nil
}
