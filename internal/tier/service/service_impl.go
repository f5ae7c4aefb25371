package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/clock"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"github.com/smallbiznis/lingohub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  tierdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     tierdomain.Repository
	validate *validator.Validate
}

func NewService(p Params) tierdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("tier.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		validate: validator.New(),
	}
}

func (s *Service) ResolveTier(ctx context.Context, audience tierdomain.Audience, planType tierdomain.PlanType, asOf time.Time) (*tierdomain.Tier, error) {
	if !planType.ValidFor(audience) {
		return nil, tierdomain.ErrInvalidPlanType
	}
	tier, err := s.repo.FindEffective(ctx, s.db, audience, planType, asOf)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, tierdomain.ErrTierNotFound
	}
	return tier, nil
}

func (s *Service) GetTier(ctx context.Context, audience tierdomain.Audience, id string) (*tierdomain.Tier, error) {
	tierID, err := parseID(id)
	if err != nil {
		return nil, tierdomain.ErrInvalidID
	}
	tier, err := s.repo.FindByID(ctx, s.db, audience, tierID)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, tierdomain.ErrTierNotFound
	}
	return tier, nil
}

func (s *Service) ListTiers(ctx context.Context, audience tierdomain.Audience, includeSuperseded bool) ([]tierdomain.Tier, error) {
	return s.repo.List(ctx, s.db, audience, includeSuperseded)
}

func (s *Service) CreateTier(ctx context.Context, req tierdomain.CreateRequest) (*tierdomain.Tier, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fieldError(err)
	}
	if !req.PlanType.ValidFor(req.Audience) {
		return nil, tierdomain.ErrInvalidPlanType
	}
	if req.Price.IsNegative() {
		return nil, tierdomain.ErrInvalidPrice
	}
	rate, err := commissionRateFor(req.Audience, req.CommissionRate)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tier := &tierdomain.Tier{
		TierColumns: tierdomain.TierColumns{
			ID:            s.genID.Generate(),
			PlanType:      req.PlanType,
			Name:          strings.TrimSpace(req.Name),
			Price:         req.Price.Round(2),
			Currency:      strings.ToUpper(req.Currency),
			BillingCycle:  req.BillingCycle,
			Version:       1,
			EffectiveFrom: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Audience:       req.Audience,
		CommissionRate: rate,
	}
	if req.Features != nil {
		tier.Features = datatypes.JSONMap(req.Features)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindEffective(ctx, tx, req.Audience, req.PlanType, now)
		if err != nil {
			return err
		}
		if existing != nil {
			return tierdomain.ErrTierExists
		}
		return s.repo.Insert(ctx, tx, tier)
	})
	if db.IsDuplicateKeyErr(err) {
		// a concurrent create for the same plan committed first
		return nil, tierdomain.ErrTierExists
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("tier created",
		zap.String("audience", string(tier.Audience)),
		zap.String("plan_type", string(tier.PlanType)),
		zap.String("tier_id", tier.ID.String()),
	)
	return tier, nil
}

// UpdateTier edits a tier in place while nothing live references it. Once a
// non-terminal subscription points at the row, price and rate changes produce
// a new version and the old row is superseded, leaving existing subscriptions,
// bookings and billing history untouched until an explicit repricing run.
func (s *Service) UpdateTier(ctx context.Context, req tierdomain.UpdateRequest) (*tierdomain.UpdateResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fieldError(err)
	}
	tierID, err := parseID(req.ID)
	if err != nil {
		return nil, tierdomain.ErrInvalidID
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, tierdomain.ErrInvalidPrice
	}
	if req.CommissionRate != nil {
		if _, err := commissionRateFor(req.Audience, req.CommissionRate); err != nil {
			return nil, err
		}
	}

	var result tierdomain.UpdateResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, req.Audience, tierID)
		if err != nil {
			return err
		}
		if current == nil {
			return tierdomain.ErrTierNotFound
		}
		if !current.Current() {
			return tierdomain.ErrTierSuperseded
		}

		next := applyUpdate(*current, req)
		now := s.clock.Now()
		next.UpdatedAt = now

		live, err := s.repo.CountSubscriptions(ctx, tx, req.Audience, current.ID, true)
		if err != nil {
			return err
		}

		if live == 0 || !pricingChanged(*current, next) {
			if err := s.repo.Update(ctx, tx, &next); err != nil {
				return err
			}
			result = tierdomain.UpdateResult{Tier: &next}
			return nil
		}

		if err := s.repo.Supersede(ctx, tx, req.Audience, current.ID, now); err != nil {
			return err
		}
		next.ID = s.genID.Generate()
		next.Version = current.Version + 1
		next.EffectiveFrom = now
		next.SupersededAt = nil
		next.CreatedAt = now
		if err := s.repo.Insert(ctx, tx, &next); err != nil {
			return err
		}

		previous := *current
		previous.SupersededAt = &now
		result = tierdomain.UpdateResult{
			Tier:       &next,
			Versioned:  true,
			Previous:   &previous,
			LiveOnPrev: live,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Versioned {
		s.log.Info("tier versioned",
			zap.String("audience", string(req.Audience)),
			zap.String("plan_type", string(result.Tier.PlanType)),
			zap.String("previous_tier_id", result.Previous.ID.String()),
			zap.String("tier_id", result.Tier.ID.String()),
			zap.Int64("live_subscriptions", result.LiveOnPrev),
		)
	}
	return &result, nil
}

func (s *Service) DeleteTier(ctx context.Context, audience tierdomain.Audience, id string) error {
	tierID, err := parseID(id)
	if err != nil {
		return tierdomain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, audience, tierID)
		if err != nil {
			return err
		}
		if current == nil {
			return tierdomain.ErrTierNotFound
		}
		refs, err := s.repo.CountSubscriptions(ctx, tx, audience, tierID, false)
		if err != nil {
			return err
		}
		if refs > 0 {
			return tierdomain.ErrTierInUse
		}
		return s.repo.Delete(ctx, tx, audience, tierID)
	})
}

func applyUpdate(tier tierdomain.Tier, req tierdomain.UpdateRequest) tierdomain.Tier {
	if req.Name != nil {
		tier.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		tier.Price = req.Price.Round(2)
	}
	if req.CommissionRate != nil {
		tier.CommissionRate = decimal.NewNullDecimal(req.CommissionRate.Round(2))
	}
	if req.Features != nil {
		tier.Features = datatypes.JSONMap(req.Features)
	}
	return tier
}

func pricingChanged(before, after tierdomain.Tier) bool {
	if !before.Price.Equal(after.Price) {
		return true
	}
	if before.CommissionRate.Valid != after.CommissionRate.Valid {
		return true
	}
	return before.CommissionRate.Valid && !before.CommissionRate.Decimal.Equal(after.CommissionRate.Decimal)
}

func commissionRateFor(audience tierdomain.Audience, rate *decimal.Decimal) (decimal.NullDecimal, error) {
	switch audience {
	case tierdomain.AudienceInstitution:
		if rate == nil || rate.IsNegative() || rate.GreaterThan(hundred) {
			return decimal.NullDecimal{}, tierdomain.ErrInvalidCommissionRate
		}
		return decimal.NewNullDecimal(rate.Round(2)), nil
	case tierdomain.AudienceStudent:
		if rate != nil {
			return decimal.NullDecimal{}, tierdomain.ErrInvalidCommissionRate
		}
		return decimal.NullDecimal{}, nil
	default:
		return decimal.NullDecimal{}, tierdomain.ErrInvalidAudience
	}
}

func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return tierdomain.ErrInvalidName
	}
	switch verrs[0].Field() {
	case "Audience":
		return tierdomain.ErrInvalidAudience
	case "PlanType":
		return tierdomain.ErrInvalidPlanType
	case "Currency":
		return tierdomain.ErrInvalidCurrency
	case "BillingCycle":
		return tierdomain.ErrInvalidBillingCycle
	case "ID":
		return tierdomain.ErrInvalidID
	default:
		return tierdomain.ErrInvalidName
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, tierdomain.ErrInvalidID
	}
	return id, nil
}
