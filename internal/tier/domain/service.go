package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Service is the tier catalog. Lookups are by plan type only.
type Service interface {
	ResolveTier(ctx context.Context, audience Audience, planType PlanType, asOf time.Time) (*Tier, error)
	GetTier(ctx context.Context, audience Audience, id string) (*Tier, error)
	ListTiers(ctx context.Context, audience Audience, includeSuperseded bool) ([]Tier, error)
	CreateTier(ctx context.Context, req CreateRequest) (*Tier, error)
	UpdateTier(ctx context.Context, req UpdateRequest) (*UpdateResult, error)
	DeleteTier(ctx context.Context, audience Audience, id string) error
}

type CreateRequest struct {
	Audience       Audience         `json:"-" validate:"required,oneof=institution student"`
	PlanType       PlanType         `json:"plan_type" validate:"required"`
	Name           string           `json:"name" validate:"required,max=120"`
	Price          decimal.Decimal  `json:"price"`
	Currency       string           `json:"currency" validate:"required,len=3,alpha"`
	BillingCycle   BillingCycle     `json:"billing_cycle" validate:"required,oneof=MONTHLY YEARLY"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
	Features       map[string]any   `json:"features"`
}

// UpdateRequest changes a tier. Nil fields are left untouched.
type UpdateRequest struct {
	Audience       Audience         `json:"-" validate:"required,oneof=institution student"`
	ID             string           `json:"-" validate:"required"`
	Name           *string          `json:"name" validate:"omitempty,max=120"`
	Price          *decimal.Decimal `json:"price"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
	Features       map[string]any   `json:"features"`
}

// UpdateResult reports whether the update produced a new version. When it did,
// Previous is the superseded row still referenced by existing subscriptions.
type UpdateResult struct {
	Tier       *Tier `json:"tier"`
	Versioned  bool  `json:"versioned"`
	Previous   *Tier `json:"previous,omitempty"`
	LiveOnPrev int64 `json:"live_subscriptions_on_previous"`
}
