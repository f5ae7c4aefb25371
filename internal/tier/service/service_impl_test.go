package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/errs"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"github.com/smallbiznis/lingohub/internal/tier/repository"
	"github.com/smallbiznis/lingohub/internal/tier/service"
	"github.com/smallbiznis/lingohub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (tierdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := dbtest.Open(t, &tierdomain.CommissionTier{}, &tierdomain.StudentTier{})
	require.NoError(t, db.Exec(`CREATE TABLE institution_subscriptions (id INTEGER PRIMARY KEY, tier_id INTEGER, status TEXT)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE student_subscriptions (id INTEGER PRIMARY KEY, tier_id INTEGER, status TEXT)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := service.NewService(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, db, clk
}

func rate(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func createProfessional(t *testing.T, svc tierdomain.Service) *tierdomain.Tier {
	t.Helper()
	tier, err := svc.CreateTier(context.Background(), tierdomain.CreateRequest{
		Audience:       tierdomain.AudienceInstitution,
		PlanType:       tierdomain.PlanProfessional,
		Name:           "Professional",
		Price:          decimal.RequireFromString("199.00"),
		Currency:       "usd",
		BillingCycle:   tierdomain.BillingCycleMonthly,
		CommissionRate: rate("12.5"),
	})
	require.NoError(t, err)
	return tier
}

func TestResolveTierByPlanType(t *testing.T) {
	svc, _, clk := setup(t)
	ctx := context.Background()

	created := createProfessional(t, svc)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, 1, created.Version)

	got, err := svc.ResolveTier(ctx, tierdomain.AudienceInstitution, tierdomain.PlanProfessional, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, got.CommissionRate.Valid)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.CommissionRate.Decimal))

	_, err = svc.ResolveTier(ctx, tierdomain.AudienceInstitution, tierdomain.PlanStarter, clk.Now())
	assert.ErrorIs(t, err, tierdomain.ErrTierNotFound)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	_, err = svc.ResolveTier(ctx, tierdomain.AudienceInstitution, tierdomain.PlanPremium, clk.Now())
	assert.ErrorIs(t, err, tierdomain.ErrInvalidPlanType)
}

func TestCreateTierValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  tierdomain.CreateRequest
		want error
	}{
		{
			name: "missing commission rate for institution",
			req: tierdomain.CreateRequest{
				Audience: tierdomain.AudienceInstitution, PlanType: tierdomain.PlanBasic, Name: "Basic",
				Price: decimal.NewFromInt(10), Currency: "USD", BillingCycle: tierdomain.BillingCycleMonthly,
			},
			want: tierdomain.ErrInvalidCommissionRate,
		},
		{
			name: "rate above hundred",
			req: tierdomain.CreateRequest{
				Audience: tierdomain.AudienceInstitution, PlanType: tierdomain.PlanBasic, Name: "Basic",
				Price: decimal.NewFromInt(10), Currency: "USD", BillingCycle: tierdomain.BillingCycleMonthly,
				CommissionRate: rate("100.01"),
			},
			want: tierdomain.ErrInvalidCommissionRate,
		},
		{
			name: "student tier with rate",
			req: tierdomain.CreateRequest{
				Audience: tierdomain.AudienceStudent, PlanType: tierdomain.PlanPremium, Name: "Premium",
				Price: decimal.NewFromInt(10), Currency: "USD", BillingCycle: tierdomain.BillingCycleMonthly,
				CommissionRate: rate("5"),
			},
			want: tierdomain.ErrInvalidCommissionRate,
		},
		{
			name: "negative price",
			req: tierdomain.CreateRequest{
				Audience: tierdomain.AudienceStudent, PlanType: tierdomain.PlanPremium, Name: "Premium",
				Price: decimal.NewFromInt(-1), Currency: "USD", BillingCycle: tierdomain.BillingCycleMonthly,
			},
			want: tierdomain.ErrInvalidPrice,
		},
		{
			name: "bad currency",
			req: tierdomain.CreateRequest{
				Audience: tierdomain.AudienceStudent, PlanType: tierdomain.PlanPremium, Name: "Premium",
				Price: decimal.NewFromInt(1), Currency: "US", BillingCycle: tierdomain.BillingCycleMonthly,
			},
			want: tierdomain.ErrInvalidCurrency,
		},
		{
			name: "bad cycle",
			req: tierdomain.CreateRequest{
				Audience: tierdomain.AudienceStudent, PlanType: tierdomain.PlanPremium, Name: "Premium",
				Price: decimal.NewFromInt(1), Currency: "USD", BillingCycle: "WEEKLY",
			},
			want: tierdomain.ErrInvalidBillingCycle,
		},
		{
			name: "plan type from other catalog",
			req: tierdomain.CreateRequest{
				Audience: tierdomain.AudienceStudent, PlanType: tierdomain.PlanEnterprise, Name: "Enterprise",
				Price: decimal.NewFromInt(1), Currency: "USD", BillingCycle: tierdomain.BillingCycleYearly,
			},
			want: tierdomain.ErrInvalidPlanType,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTier(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, errs.Validation, errs.KindOf(err))
		})
	}
}

func TestCreateTierRejectsDuplicatePlan(t *testing.T) {
	svc, _, _ := setup(t)
	createProfessional(t, svc)

	_, err := svc.CreateTier(context.Background(), tierdomain.CreateRequest{
		Audience:       tierdomain.AudienceInstitution,
		PlanType:       tierdomain.PlanProfessional,
		Name:           "Professional again",
		Price:          decimal.NewFromInt(1),
		Currency:       "USD",
		BillingCycle:   tierdomain.BillingCycleMonthly,
		CommissionRate: rate("10"),
	})
	assert.ErrorIs(t, err, tierdomain.ErrTierExists)
}

// racingRepo sees no effective tier, then loses the insert to a concurrent
// create on the store's unique constraint.
type racingRepo struct {
	tierdomain.Repository
}

func (racingRepo) FindEffective(ctx context.Context, db *gorm.DB, audience tierdomain.Audience, planType tierdomain.PlanType, asOf time.Time) (*tierdomain.Tier, error) {
	return nil, nil
}

func (racingRepo) Insert(ctx context.Context, db *gorm.DB, tier *tierdomain.Tier) error {
	return fmt.Errorf("insert tier: %w", gorm.ErrDuplicatedKey)
}

func TestCreateTierMapsUniqueRaceToTierExists(t *testing.T) {
	_, db, clk := setup(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	svc := service.NewService(service.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
		Repo: racingRepo{Repository: repository.Provide()},
	})

	_, err = svc.CreateTier(context.Background(), tierdomain.CreateRequest{
		Audience:       tierdomain.AudienceInstitution,
		PlanType:       tierdomain.PlanProfessional,
		Name:           "Professional",
		Price:          decimal.NewFromInt(199),
		Currency:       "USD",
		BillingCycle:   tierdomain.BillingCycleMonthly,
		CommissionRate: rate("12.5"),
	})
	require.ErrorIs(t, err, tierdomain.ErrTierExists)
	assert.Equal(t, errs.Validation, errs.KindOf(err))
}

func TestUpdateTierInPlaceWithoutLiveSubscriptions(t *testing.T) {
	svc, _, clk := setup(t)
	ctx := context.Background()
	created := createProfessional(t, svc)

	clk.Advance(time.Hour)
	res, err := svc.UpdateTier(ctx, tierdomain.UpdateRequest{
		Audience:       tierdomain.AudienceInstitution,
		ID:             created.ID.String(),
		CommissionRate: rate("10"),
	})
	require.NoError(t, err)
	assert.False(t, res.Versioned)
	assert.Equal(t, created.ID, res.Tier.ID)

	got, err := svc.GetTier(ctx, tierdomain.AudienceInstitution, created.ID.String())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got.CommissionRate.Decimal))
	assert.Equal(t, 1, got.Version)
}

func TestUpdateTierVersionsWhenLiveSubscriptionsExist(t *testing.T) {
	svc, db, clk := setup(t)
	ctx := context.Background()
	created := createProfessional(t, svc)

	require.NoError(t, db.Exec(`INSERT INTO institution_subscriptions (id, tier_id, status) VALUES (?, ?, ?)`, 1, created.ID, "ACTIVE").Error)

	clk.Advance(24 * time.Hour)
	res, err := svc.UpdateTier(ctx, tierdomain.UpdateRequest{
		Audience: tierdomain.AudienceInstitution,
		ID:       created.ID.String(),
		Price:    rate("249.00"),
	})
	require.NoError(t, err)
	require.True(t, res.Versioned)
	assert.NotEqual(t, created.ID, res.Tier.ID)
	assert.Equal(t, 2, res.Tier.Version)
	assert.Equal(t, int64(1), res.LiveOnPrev)

	old, err := svc.GetTier(ctx, tierdomain.AudienceInstitution, created.ID.String())
	require.NoError(t, err)
	assert.False(t, old.Current())
	assert.True(t, decimal.RequireFromString("199").Equal(old.Price))

	current, err := svc.ResolveTier(ctx, tierdomain.AudienceInstitution, tierdomain.PlanProfessional, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, res.Tier.ID, current.ID)

	before, err := svc.ResolveTier(ctx, tierdomain.AudienceInstitution, tierdomain.PlanProfessional, clk.Now().Add(-12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, created.ID, before.ID)

	_, err = svc.UpdateTier(ctx, tierdomain.UpdateRequest{
		Audience: tierdomain.AudienceInstitution,
		ID:       created.ID.String(),
		Price:    rate("1"),
	})
	assert.ErrorIs(t, err, tierdomain.ErrTierSuperseded)
}

func TestDeleteTierInUse(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	created := createProfessional(t, svc)

	require.NoError(t, db.Exec(`INSERT INTO institution_subscriptions (id, tier_id, status) VALUES (?, ?, ?)`, 1, created.ID, "CANCELLED").Error)
	assert.ErrorIs(t, svc.DeleteTier(ctx, tierdomain.AudienceInstitution, created.ID.String()), tierdomain.ErrTierInUse)

	require.NoError(t, db.Exec(`DELETE FROM institution_subscriptions`).Error)
	require.NoError(t, svc.DeleteTier(ctx, tierdomain.AudienceInstitution, created.ID.String()))

	_, err := svc.GetTier(ctx, tierdomain.AudienceInstitution, created.ID.String())
	assert.ErrorIs(t, err, tierdomain.ErrTierNotFound)

	_, err = svc.GetTier(ctx, tierdomain.AudienceInstitution, "nope")
	assert.ErrorIs(t, err, tierdomain.ErrInvalidID)
}

