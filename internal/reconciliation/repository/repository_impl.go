package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertViolations(ctx context.Context, db *gorm.DB, rows []domain.ConsistencyViolation) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(rows, 200).Error
}

func (r *repo) ListViolations(ctx context.Context, db *gorm.DB, cursor snowflake.ID, limit int) ([]domain.ConsistencyViolation, error) {
	stmt := db.WithContext(ctx).Model(&domain.ConsistencyViolation{})
	if cursor > 0 {
		stmt = stmt.Where("id < ?", cursor)
	}
	var rows []domain.ConsistencyViolation
	if err := stmt.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
