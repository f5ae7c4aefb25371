package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lingohub/internal/tier/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tier *domain.Tier) error {
	switch tier.Audience {
	case domain.AudienceInstitution:
		row := domain.CommissionTier{
			TierColumns:    tier.TierColumns,
			CommissionRate: tier.CommissionRate.Decimal,
		}
		return db.WithContext(ctx).Create(&row).Error
	case domain.AudienceStudent:
		row := domain.StudentTier{TierColumns: tier.TierColumns}
		return db.WithContext(ctx).Create(&row).Error
	default:
		return domain.ErrInvalidAudience
	}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, audience domain.Audience, id snowflake.ID) (*domain.Tier, error) {
	return r.take(db.WithContext(ctx).Table(audience.TableName()).Where("id = ?", id), audience)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, audience domain.Audience, id snowflake.ID) (*domain.Tier, error) {
	return r.take(
		db.WithContext(ctx).
			Table(audience.TableName()).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id),
		audience,
	)
}

func (r *repo) FindEffective(ctx context.Context, db *gorm.DB, audience domain.Audience, planType domain.PlanType, asOf time.Time) (*domain.Tier, error) {
	var tiers []domain.Tier
	err := db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT * FROM %s
			WHERE plan_type = ?
			AND effective_from <= ?
			AND (superseded_at IS NULL OR superseded_at > ?)
			ORDER BY effective_from DESC, version DESC
			LIMIT 1`, audience.TableName()),
		planType, asOf, asOf,
	).Scan(&tiers).Error
	if err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		return nil, nil
	}
	tiers[0].Audience = audience
	return &tiers[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, audience domain.Audience, includeSuperseded bool) ([]domain.Tier, error) {
	query := fmt.Sprintf(`SELECT * FROM %s`, audience.TableName())
	if !includeSuperseded {
		query += ` WHERE superseded_at IS NULL`
	}
	query += ` ORDER BY plan_type ASC, version DESC`

	var tiers []domain.Tier
	if err := db.WithContext(ctx).Raw(query).Scan(&tiers).Error; err != nil {
		return nil, err
	}
	for i := range tiers {
		tiers[i].Audience = audience
	}
	return tiers, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tier *domain.Tier) error {
	switch tier.Audience {
	case domain.AudienceInstitution:
		return db.WithContext(ctx).Exec(
			`UPDATE commission_tiers
			SET name = ?, price = ?, commission_rate = ?, features = ?, updated_at = ?
			WHERE id = ?`,
			tier.Name, tier.Price, tier.CommissionRate.Decimal, tier.Features, tier.UpdatedAt, tier.ID,
		).Error
	case domain.AudienceStudent:
		return db.WithContext(ctx).Exec(
			`UPDATE student_tiers
			SET name = ?, price = ?, features = ?, updated_at = ?
			WHERE id = ?`,
			tier.Name, tier.Price, tier.Features, tier.UpdatedAt, tier.ID,
		).Error
	default:
		return domain.ErrInvalidAudience
	}
}

func (r *repo) Supersede(ctx context.Context, db *gorm.DB, audience domain.Audience, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s SET superseded_at = ?, updated_at = ? WHERE id = ? AND superseded_at IS NULL`, audience.TableName()),
		at, at, id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, audience domain.Audience, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, audience.TableName()),
		id,
	).Error
}

func (r *repo) CountSubscriptions(ctx context.Context, db *gorm.DB, audience domain.Audience, tierID snowflake.ID, liveOnly bool) (int64, error) {
	table := "institution_subscriptions"
	if audience == domain.AudienceStudent {
		table = "student_subscriptions"
	}
	query := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE tier_id = ?`, table)
	if liveOnly {
		query += ` AND status NOT IN ('CANCELLED', 'EXPIRED')`
	}

	var count int64
	if err := db.WithContext(ctx).Raw(query, tierID).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) take(stmt *gorm.DB, audience domain.Audience) (*domain.Tier, error) {
	var tier domain.Tier
	if err := stmt.Take(&tier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	tier.Audience = audience
	return &tier, nil
}
