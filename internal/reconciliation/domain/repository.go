package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertViolations(ctx context.Context, db *gorm.DB, rows []ConsistencyViolation) error
	// ListViolations pages newest first. A zero cursor starts at the newest row.
	ListViolations(ctx context.Context, db *gorm.DB, cursor snowflake.ID, limit int) ([]ConsistencyViolation, error)
}
