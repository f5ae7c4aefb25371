// Package domain contains persistence models for institution and student
// subscriptions and their append-only audit trail.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"gorm.io/datatypes"
)

// TrialPeriod is the fixed length of a subscription trial.
const TrialPeriod = 7 * 24 * time.Hour

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "PENDING"
	SubscriptionStatusTrial     SubscriptionStatus = "TRIAL"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusPending,
		SubscriptionStatusTrial,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCancelled,
		SubscriptionStatusExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible. Unrecognised
// stored values are treated as terminal.
func (s SubscriptionStatus) Terminal() bool {
	switch s {
	case SubscriptionStatusPending, SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue:
		return false
	default:
		return true
	}
}

// Effective reports whether the subscription currently grants its tier.
func (s SubscriptionStatus) Effective() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

// LiveStatuses are the non-terminal statuses.
var LiveStatuses = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusTrial,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
}

// EffectiveStatuses are the statuses under which a tier applies.
var EffectiveStatuses = []SubscriptionStatus{
	SubscriptionStatusTrial,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
}

type Transition struct {
	From SubscriptionStatus
	To   SubscriptionStatus
}

var transitions = map[Transition]bool{
	{SubscriptionStatusPending, SubscriptionStatusTrial}:     true,
	{SubscriptionStatusPending, SubscriptionStatusActive}:    true,
	{SubscriptionStatusPending, SubscriptionStatusCancelled}: true,
	{SubscriptionStatusPending, SubscriptionStatusExpired}:   true,

	{SubscriptionStatusTrial, SubscriptionStatusActive}:    true,
	{SubscriptionStatusTrial, SubscriptionStatusPastDue}:   true,
	{SubscriptionStatusTrial, SubscriptionStatusCancelled}: true,
	{SubscriptionStatusTrial, SubscriptionStatusExpired}:   true,

	{SubscriptionStatusActive, SubscriptionStatusPastDue}:   true,
	{SubscriptionStatusActive, SubscriptionStatusCancelled}: true,
	{SubscriptionStatusActive, SubscriptionStatusExpired}:   true,

	{SubscriptionStatusPastDue, SubscriptionStatusActive}:    true,
	{SubscriptionStatusPastDue, SubscriptionStatusCancelled}: true,
	{SubscriptionStatusPastDue, SubscriptionStatusExpired}:   true,
}

func CanTransition(from, to SubscriptionStatus) bool {
	return transitions[Transition{From: from, To: to}]
}

// HolderKind labels billing and log rows with the subscription's table.
type HolderKind string

const (
	HolderKindInstitution HolderKind = "INSTITUTION"
	HolderKindStudent     HolderKind = "STUDENT"
)

func HolderKindOf(holder tierdomain.Audience) HolderKind {
	switch holder {
	case tierdomain.AudienceInstitution:
		return HolderKindInstitution
	case tierdomain.AudienceStudent:
		return HolderKindStudent
	default:
		panic(fmt.Sprintf("subscription: unknown holder %q", string(holder)))
	}
}

// TableFor returns the subscription table of a holder kind.
func TableFor(holder tierdomain.Audience) string {
	switch holder {
	case tierdomain.AudienceInstitution:
		return "institution_subscriptions"
	case tierdomain.AudienceStudent:
		return "student_subscriptions"
	default:
		panic(fmt.Sprintf("subscription: unknown holder %q", string(holder)))
	}
}

// Subscription is a holder's membership of one tier version. The price is
// always read from the tier row; none is copied here.
type Subscription struct {
	ID          snowflake.ID       `json:"id" gorm:"primaryKey"`
	HolderID    snowflake.ID       `json:"holder_id" gorm:"not null"`
	TierID      snowflake.ID       `json:"tier_id" gorm:"not null"`
	Status      SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	StartDate   time.Time          `json:"start_date" gorm:"not null"`
	EndDate     *time.Time         `json:"end_date,omitempty"`
	TrialEndsAt *time.Time         `json:"trial_ends_at,omitempty"`
	AutoRenew   bool               `json:"auto_renew" gorm:"not null;default:false"`
	CancelledAt *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time          `json:"updated_at" gorm:"not null"`

	Holder tierdomain.Audience `json:"holder" gorm:"-"`
	Tier   *tierdomain.Tier    `json:"tier,omitempty" gorm:"-"`
}

type BillingKind string

const (
	BillingKindCreated        BillingKind = "CREATED"
	BillingKindActivated      BillingKind = "ACTIVATED"
	BillingKindRenewed        BillingKind = "RENEWED"
	BillingKindPaymentApplied BillingKind = "PAYMENT_APPLIED"
	BillingKindTierChanged    BillingKind = "TIER_CHANGED"
	BillingKindRepriced       BillingKind = "REPRICED"
)

// BillingHistory is append-only.
type BillingHistory struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	SubscriptionID snowflake.ID    `json:"subscription_id" gorm:"not null;index"`
	HolderKind     HolderKind      `json:"holder_kind" gorm:"type:text;not null"`
	Kind           BillingKind     `json:"kind" gorm:"type:text;not null"`
	TierID         snowflake.ID    `json:"tier_id" gorm:"not null"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency       string          `json:"currency" gorm:"type:text;not null"`
	PeriodStart    time.Time       `json:"period_start" gorm:"not null"`
	PeriodEnd      *time.Time      `json:"period_end,omitempty"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
}

func (BillingHistory) TableName() string { return "billing_histories" }

type LogAction string

const (
	LogActionCreated        LogAction = "CREATED"
	LogActionActivated      LogAction = "ACTIVATED"
	LogActionRenewed        LogAction = "RENEWED"
	LogActionTierChanged    LogAction = "TIER_CHANGED"
	LogActionMarkedPastDue  LogAction = "MARKED_PAST_DUE"
	LogActionPaymentApplied LogAction = "PAYMENT_APPLIED"
	LogActionCancelled      LogAction = "CANCELLED"
	LogActionExpired        LogAction = "EXPIRED"
	LogActionRepriced       LogAction = "REPRICED"
)

// SubscriptionLog is append-only. Before is empty for the creating entry.
type SubscriptionLog struct {
	ID             snowflake.ID       `json:"id" gorm:"primaryKey"`
	SubscriptionID snowflake.ID       `json:"subscription_id" gorm:"not null;index"`
	HolderKind     HolderKind         `json:"holder_kind" gorm:"type:text;not null"`
	Action         LogAction          `json:"action" gorm:"type:text;not null"`
	FromStatus     SubscriptionStatus `json:"from_status,omitempty" gorm:"type:text"`
	ToStatus       SubscriptionStatus `json:"to_status" gorm:"type:text;not null"`
	Before         datatypes.JSONMap  `json:"before,omitempty"`
	After          datatypes.JSONMap  `json:"after"`
	CreatedAt      time.Time          `json:"created_at" gorm:"not null"`
}

func (SubscriptionLog) TableName() string { return "subscription_logs" }
