package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Institution, error)
	FindCourse(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Course, error)
	UpdateCommissionRate(ctx context.Context, db *gorm.DB, id snowflake.ID, rate decimal.Decimal, at time.Time) error
}
