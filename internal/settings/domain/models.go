package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/lingohub/internal/errs"
	"gorm.io/gorm"
)

// Known setting keys. Unknown keys are rejected on write.
const (
	KeyCurrency           = "currency"
	KeyCheckoutSuccessURL = "checkout_success_url"
	KeyCheckoutCancelURL  = "checkout_cancel_url"
)

var Defaults = map[string]string{
	KeyCurrency:           "USD",
	KeyCheckoutSuccessURL: "",
	KeyCheckoutCancelURL:  "",
}

type PlatformSetting struct {
	Key       string    `json:"key" gorm:"primaryKey;type:text"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (PlatformSetting) TableName() string { return "platform_settings" }

var (
	ErrUnknownSetting = errs.New(errs.Validation, "unknown_setting")
	ErrInvalidSetting = errs.New(errs.Validation, "invalid_setting_value")
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, key string) (*PlatformSetting, error)
	List(ctx context.Context, db *gorm.DB) ([]PlatformSetting, error)
	Upsert(ctx context.Context, db *gorm.DB, setting *PlatformSetting) error
}
