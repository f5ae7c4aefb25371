package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, id snowflake.ID) (*Subscription, error)
	FindByHolder(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, holderID snowflake.ID, statuses []SubscriptionStatus) (*Subscription, error)
	ListByHolder(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, holderID snowflake.ID) ([]Subscription, error)
	ListLiveByTier(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, tierID snowflake.ID) ([]Subscription, error)
	ListDue(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, now time.Time, limit int) ([]Subscription, error)
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error

	InsertLog(ctx context.Context, db *gorm.DB, entry *SubscriptionLog) error
	ListLogs(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]SubscriptionLog, error)
	InsertBillingHistory(ctx context.Context, db *gorm.DB, entry *BillingHistory) error
	ListBillingHistory(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]BillingHistory, error)
}
