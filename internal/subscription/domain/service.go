package domain

import (
	"context"
	"time"

	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
)

type CreateRequest struct {
	Holder    tierdomain.Audience `json:"-"`
	HolderID  string              `json:"holder_id"`
	PlanType  tierdomain.PlanType `json:"plan_type"`
	Trial     bool                `json:"trial"`
	Pending   bool                `json:"pending"`
	AutoRenew bool                `json:"auto_renew"`
}

// RepriceResult reports a repricing run from a superseded tier version.
type RepriceResult struct {
	FromTierID string `json:"from_tier_id"`
	ToTierID   string `json:"to_tier_id"`
	Moved      int    `json:"moved"`
}

// Service is the subscription lifecycle. Every mutation writes one log entry
// in the same transaction as the status change.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Subscription, error)
	Activate(ctx context.Context, holder tierdomain.Audience, id string) (*Subscription, error)
	Renew(ctx context.Context, holder tierdomain.Audience, id string) (*Subscription, error)
	ChangeTier(ctx context.Context, holder tierdomain.Audience, id string, planType tierdomain.PlanType) (*Subscription, error)
	MarkPastDue(ctx context.Context, holder tierdomain.Audience, id string) (*Subscription, error)
	ApplyPayment(ctx context.Context, holder tierdomain.Audience, id string) (*Subscription, error)
	Cancel(ctx context.Context, holder tierdomain.Audience, id string) (*Subscription, error)
	Expire(ctx context.Context, holder tierdomain.Audience, id string) (*Subscription, error)

	Get(ctx context.Context, holder tierdomain.Audience, id string) (*Subscription, error)
	ListByHolder(ctx context.Context, holder tierdomain.Audience, holderID string) ([]Subscription, error)
	ListLogs(ctx context.Context, holder tierdomain.Audience, id string) ([]SubscriptionLog, error)
	ListBillingHistory(ctx context.Context, holder tierdomain.Audience, id string) ([]BillingHistory, error)

	// ExpireDue ends lapsed trials and periods as of now and returns how many
	// subscriptions changed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	// Reprice moves every live subscription on a superseded tier version to
	// the current version of the same plan type.
	Reprice(ctx context.Context, holder tierdomain.Audience, fromTierID string) (*RepriceResult, error)
}
