package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Audience selects which catalog a tier belongs to. It doubles as the holder
// kind of a subscription.
type Audience string

const (
	AudienceInstitution Audience = "institution"
	AudienceStudent     Audience = "student"
)

func ParseAudience(raw string) (Audience, error) {
	switch Audience(strings.ToLower(strings.TrimSpace(raw))) {
	case AudienceInstitution:
		return AudienceInstitution, nil
	case AudienceStudent:
		return AudienceStudent, nil
	default:
		return "", ErrInvalidAudience
	}
}

func (a Audience) TableName() string {
	switch a {
	case AudienceInstitution:
		return CommissionTier{}.TableName()
	case AudienceStudent:
		return StudentTier{}.TableName()
	default:
		panic(fmt.Sprintf("tier: unknown audience %q", string(a)))
	}
}

type PlanType string

const (
	PlanBasic        PlanType = "BASIC"
	PlanStarter      PlanType = "STARTER"
	PlanProfessional PlanType = "PROFESSIONAL"
	PlanEnterprise   PlanType = "ENTERPRISE"

	PlanFree     PlanType = "FREE"
	PlanStandard PlanType = "STANDARD"
	PlanPremium  PlanType = "PREMIUM"
)

// ValidFor reports whether the plan type belongs to the audience's catalog.
func (p PlanType) ValidFor(a Audience) bool {
	switch a {
	case AudienceInstitution:
		switch p {
		case PlanBasic, PlanStarter, PlanProfessional, PlanEnterprise:
			return true
		}
	case AudienceStudent:
		switch p {
		case PlanFree, PlanStandard, PlanPremium:
			return true
		}
	}
	return false
}

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "MONTHLY"
	BillingCycleYearly  BillingCycle = "YEARLY"
)

// Advance returns the end of one billing period starting at t.
func (c BillingCycle) Advance(t time.Time) time.Time {
	switch c {
	case BillingCycleYearly:
		return t.AddDate(1, 0, 0)
	case BillingCycleMonthly:
		return t.AddDate(0, 1, 0)
	default:
		panic(fmt.Sprintf("tier: unknown billing cycle %q", string(c)))
	}
}

func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// TierColumns are shared by both catalog tables.
type TierColumns struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	PlanType      PlanType          `json:"plan_type" gorm:"type:text;not null;index"`
	Name          string            `json:"name" gorm:"type:text;not null"`
	Price         decimal.Decimal   `json:"price" gorm:"type:numeric(12,2);not null"`
	Currency      string            `json:"currency" gorm:"type:text;not null"`
	BillingCycle  BillingCycle      `json:"billing_cycle" gorm:"type:text;not null"`
	Features      datatypes.JSONMap `json:"features,omitempty"`
	Version       int               `json:"version" gorm:"not null;default:1"`
	EffectiveFrom time.Time         `json:"effective_from" gorm:"not null"`
	SupersededAt  *time.Time        `json:"superseded_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null"`
}

// CommissionTier is the persisted institution plan.
type CommissionTier struct {
	TierColumns
	CommissionRate decimal.Decimal `json:"commission_rate" gorm:"type:numeric(5,2);not null"`
}

func (CommissionTier) TableName() string { return "commission_tiers" }

// StudentTier is the persisted student plan. Students pay no commission.
type StudentTier struct {
	TierColumns
}

func (StudentTier) TableName() string { return "student_tiers" }

// Tier is the audience-independent read view of a catalog row.
type Tier struct {
	TierColumns
	Audience       Audience            `json:"audience" gorm:"-"`
	CommissionRate decimal.NullDecimal `json:"commission_rate"`
}

// Current reports whether the version has not been superseded.
func (t Tier) Current() bool { return t.SupersededAt == nil }
