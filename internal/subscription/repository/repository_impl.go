package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lingohub/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Table(domain.TableFor(sub.Holder)).Create(sub).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, id snowflake.ID) (*domain.Subscription, error) {
	return take(db.WithContext(ctx).Table(domain.TableFor(holder)).Where("id = ?", id), holder)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, id snowflake.ID) (*domain.Subscription, error) {
	return take(
		db.WithContext(ctx).
			Table(domain.TableFor(holder)).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id),
		holder,
	)
}

func (r *repo) FindByHolder(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, holderID snowflake.ID, statuses []domain.SubscriptionStatus) (*domain.Subscription, error) {
	return take(
		db.WithContext(ctx).
			Table(domain.TableFor(holder)).
			Where("holder_id = ? AND status IN ?", holderID, statuses).
			Order("start_date DESC, id DESC"),
		holder,
	)
}

func (r *repo) ListByHolder(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, holderID snowflake.ID) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.WithContext(ctx).
		Table(domain.TableFor(holder)).
		Where("holder_id = ?", holderID).
		Order("created_at DESC, id DESC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return withHolder(subs, holder), nil
}

func (r *repo) ListLiveByTier(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, tierID snowflake.ID) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.WithContext(ctx).
		Table(domain.TableFor(holder)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tier_id = ? AND status IN ?", tierID, domain.LiveStatuses).
		Order("id ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return withHolder(subs, holder), nil
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, holder tierdomain.Audience, now time.Time, limit int) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.WithContext(ctx).
		Table(domain.TableFor(holder)).
		Where(
			"(status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at <= ?) OR (status = ? AND end_date IS NOT NULL AND end_date <= ?)",
			domain.SubscriptionStatusTrial, now,
			domain.SubscriptionStatusActive, now,
		).
		Order("id ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return withHolder(subs, holder), nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE `+domain.TableFor(sub.Holder)+`
		SET tier_id = ?, status = ?, start_date = ?, end_date = ?, trial_ends_at = ?,
			auto_renew = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ?`,
		sub.TierID, sub.Status, sub.StartDate, sub.EndDate, sub.TrialEndsAt,
		sub.AutoRenew, sub.CancelledAt, sub.UpdatedAt,
		sub.ID,
	).Error
}

func (r *repo) InsertLog(ctx context.Context, db *gorm.DB, entry *domain.SubscriptionLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListLogs(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]domain.SubscriptionLog, error) {
	var entries []domain.SubscriptionLog
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repo) InsertBillingHistory(ctx context.Context, db *gorm.DB, entry *domain.BillingHistory) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListBillingHistory(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]domain.BillingHistory, error) {
	var entries []domain.BillingHistory
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func take(stmt *gorm.DB, holder tierdomain.Audience) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := stmt.Take(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	sub.Holder = holder
	return &sub, nil
}

func withHolder(subs []domain.Subscription, holder tierdomain.Audience) []domain.Subscription {
	for i := range subs {
		subs[i].Holder = holder
	}
	return subs
}
