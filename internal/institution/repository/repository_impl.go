package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/institution/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Institution, error) {
	var institution domain.Institution
	err := db.WithContext(ctx).Where("id = ?", id).Take(&institution).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &institution, nil
}

func (r *repo) FindCourse(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Course, error) {
	var course domain.Course
	err := db.WithContext(ctx).Where("id = ?", id).Take(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *repo) UpdateCommissionRate(ctx context.Context, db *gorm.DB, id snowflake.ID, rate decimal.Decimal, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE institutions SET commission_rate = ?, updated_at = ? WHERE id = ?`,
		rate, at, id,
	).Error
}
