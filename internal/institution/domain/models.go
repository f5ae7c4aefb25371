// Package domain holds the marketplace records the accounting engine prices
// against: institutions and the courses they list.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Institution carries the cached display rate and the pre-tier legacy fields.
// CommissionRate is refreshed by subscription changes and is never used to
// compute a booking charge.
type Institution struct {
	ID                     snowflake.ID        `json:"id" gorm:"primaryKey"`
	Name                   string              `json:"name" gorm:"type:text;not null"`
	CommissionRate         decimal.NullDecimal `json:"commission_rate" gorm:"type:numeric(5,2)"`
	LegacySubscriptionPlan *string             `json:"legacy_subscription_plan,omitempty" gorm:"type:text"`
	LegacyCommissionRate   decimal.NullDecimal `json:"legacy_commission_rate" gorm:"type:numeric(5,2)"`
	CreatedAt              time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time           `json:"updated_at" gorm:"not null"`
}

func (Institution) TableName() string { return "institutions" }

type Course struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	InstitutionID snowflake.ID    `json:"institution_id" gorm:"not null;index"`
	Title         string          `json:"title" gorm:"type:text;not null"`
	BasePrice     decimal.Decimal `json:"base_price" gorm:"type:numeric(12,2);not null"`
	Currency      string          `json:"currency" gorm:"type:text;not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null"`
}

func (Course) TableName() string { return "courses" }
