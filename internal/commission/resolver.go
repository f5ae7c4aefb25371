package commission

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/clock"
	institutiondomain "github.com/smallbiznis/lingohub/internal/institution/domain"
	subscriptiondomain "github.com/smallbiznis/lingohub/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RateSource records on a booking how its frozen rate was chosen.
type RateSource string

const (
	RateSourceTier        RateSource = "TIER"
	RateSourceLegacyField RateSource = "LEGACY_FIELD"
)

// Resolution is the outcome of rate resolution. It is implemented only by
// ResolvedViaTier and ResolvedViaLegacyField.
type Resolution interface {
	EffectiveRate() decimal.Decimal
	Source() RateSource
	resolution()
}

// ResolvedViaTier means the institution has an effective subscription on a
// commission tier.
type ResolvedViaTier struct {
	SubscriptionID snowflake.ID        `json:"subscription_id"`
	TierID         snowflake.ID        `json:"tier_id"`
	PlanType       tierdomain.PlanType `json:"plan_type"`
	Rate           decimal.Decimal     `json:"rate"`
}

func (r ResolvedViaTier) EffectiveRate() decimal.Decimal { return r.Rate }
func (ResolvedViaTier) Source() RateSource               { return RateSourceTier }
func (ResolvedViaTier) resolution()                      {}

// ResolvedViaLegacyField means no subscription applies and the rate came from
// the institution's pre-tier fields.
type ResolvedViaLegacyField struct {
	Plan string          `json:"plan,omitempty"`
	Rate decimal.Decimal `json:"rate"`
}

func (r ResolvedViaLegacyField) EffectiveRate() decimal.Decimal { return r.Rate }
func (ResolvedViaLegacyField) Source() RateSource               { return RateSourceLegacyField }
func (ResolvedViaLegacyField) resolution()                      {}

type ResolverParams struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	SubRepo         subscriptiondomain.Repository
	TierRepo        tierdomain.Repository
	InstitutionRepo institutiondomain.Repository
}

type Resolver struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	subRepo         subscriptiondomain.Repository
	tierRepo        tierdomain.Repository
	institutionRepo institutiondomain.Repository
}

func NewResolver(p ResolverParams) *Resolver {
	return &Resolver{
		db:              p.DB,
		log:             p.Log.Named("commission.resolver"),
		clock:           p.Clock,
		subRepo:         p.SubRepo,
		tierRepo:        p.TierRepo,
		institutionRepo: p.InstitutionRepo,
	}
}

// EffectiveRate resolves the rate a booking created at asOf is frozen at. An
// effective subscription wins; otherwise the legacy stored rate, then the
// current tier named by the legacy plan.
func (r *Resolver) EffectiveRate(ctx context.Context, db *gorm.DB, institutionID snowflake.ID, asOf time.Time) (Resolution, error) {
	institution, err := r.institutionRepo.FindByID(ctx, db, institutionID)
	if err != nil {
		return nil, err
	}
	if institution == nil {
		return nil, institutiondomain.ErrInstitutionNotFound
	}

	sub, err := r.subRepo.FindByHolder(ctx, db, tierdomain.AudienceInstitution, institutionID, subscriptiondomain.EffectiveStatuses)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		tier, err := r.tierRepo.FindByID(ctx, db, tierdomain.AudienceInstitution, sub.TierID)
		if err != nil {
			return nil, err
		}
		if tier != nil && tier.CommissionRate.Valid {
			return ResolvedViaTier{
				SubscriptionID: sub.ID,
				TierID:         tier.ID,
				PlanType:       tier.PlanType,
				Rate:           tier.CommissionRate.Decimal,
			}, nil
		}
		r.log.Warn("subscription tier carries no commission rate, using legacy fields",
			zap.String("institution_id", institutionID.String()),
			zap.String("subscription_id", sub.ID.String()),
			zap.String("tier_id", sub.TierID.String()),
		)
	}

	return r.legacy(ctx, db, institution, asOf)
}

func (r *Resolver) legacy(ctx context.Context, db *gorm.DB, institution *institutiondomain.Institution, asOf time.Time) (Resolution, error) {
	var plan string
	if institution.LegacySubscriptionPlan != nil {
		plan = strings.ToUpper(strings.TrimSpace(*institution.LegacySubscriptionPlan))
	}

	if institution.LegacyCommissionRate.Valid {
		return ResolvedViaLegacyField{Plan: plan, Rate: institution.LegacyCommissionRate.Decimal}, nil
	}

	planType := tierdomain.PlanType(plan)
	if plan == "" || !planType.ValidFor(tierdomain.AudienceInstitution) {
		return nil, ErrNoEffectiveRate
	}
	tier, err := r.tierRepo.FindEffective(ctx, db, tierdomain.AudienceInstitution, planType, asOf)
	if err != nil {
		return nil, err
	}
	if tier == nil || !tier.CommissionRate.Valid {
		return nil, ErrNoEffectiveRate
	}
	return ResolvedViaLegacyField{Plan: plan, Rate: tier.CommissionRate.Decimal}, nil
}

// RateView is the display form of an institution's rate.
type RateView struct {
	InstitutionID snowflake.ID        `json:"institution_id"`
	Source        RateSource          `json:"source"`
	Rate          decimal.Decimal     `json:"rate"`
	CachedRate    decimal.NullDecimal `json:"cached_rate"`
	Resolution    Resolution          `json:"resolution"`
}

// Describe resolves the live rate for display and ranking. Bookings never
// read it back; they carry their own frozen rate.
func (r *Resolver) Describe(ctx context.Context, rawID string) (*RateView, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return nil, institutiondomain.ErrInvalidInstitutionID
	}
	res, err := r.EffectiveRate(ctx, r.db, id, r.clock.Now())
	if err != nil {
		return nil, err
	}
	institution, err := r.institutionRepo.FindByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if institution == nil {
		return nil, institutiondomain.ErrInstitutionNotFound
	}
	return &RateView{
		InstitutionID: id,
		Source:        res.Source(),
		Rate:          res.EffectiveRate(),
		CachedRate:    institution.CommissionRate,
		Resolution:    res,
	}, nil
}
