package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tier *Tier) error
	FindByID(ctx context.Context, db *gorm.DB, audience Audience, id snowflake.ID) (*Tier, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, audience Audience, id snowflake.ID) (*Tier, error)
	FindEffective(ctx context.Context, db *gorm.DB, audience Audience, planType PlanType, asOf time.Time) (*Tier, error)
	List(ctx context.Context, db *gorm.DB, audience Audience, includeSuperseded bool) ([]Tier, error)
	Update(ctx context.Context, db *gorm.DB, tier *Tier) error
	Supersede(ctx context.Context, db *gorm.DB, audience Audience, id snowflake.ID, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, audience Audience, id snowflake.ID) error
	CountSubscriptions(ctx context.Context, db *gorm.DB, audience Audience, tierID snowflake.ID, liveOnly bool) (int64, error)
}
