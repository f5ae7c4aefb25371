package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	bookingrepo "github.com/smallbiznis/lingohub/internal/booking/repository"
	"github.com/smallbiznis/lingohub/internal/booking/service"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/commission"
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/errs"
	institutiondomain "github.com/smallbiznis/lingohub/internal/institution/domain"
	institutionrepo "github.com/smallbiznis/lingohub/internal/institution/repository"
	"github.com/smallbiznis/lingohub/internal/migration"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/lingohub/internal/payment/repository"
	paymentservice "github.com/smallbiznis/lingohub/internal/payment/service"
	reconciliationrepo "github.com/smallbiznis/lingohub/internal/reconciliation/repository"
	settingsrepo "github.com/smallbiznis/lingohub/internal/settings/repository"
	settingsservice "github.com/smallbiznis/lingohub/internal/settings/service"
	subscriptiondomain "github.com/smallbiznis/lingohub/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/lingohub/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/lingohub/internal/subscription/service"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	tierrepo "github.com/smallbiznis/lingohub/internal/tier/repository"
	tierservice "github.com/smallbiznis/lingohub/internal/tier/service"
	"github.com/smallbiznis/lingohub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type checkoutGateway struct {
	err      error
	requests []paymentdomain.CheckoutRequest
}

func (g *checkoutGateway) Provider() string { return "stripe" }

func (g *checkoutGateway) CreateCheckout(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	ref := "cs_" + req.BookingID.String()
	return &paymentdomain.CheckoutSession{SessionRef: ref, URL: "https://pay.example/" + ref}, nil
}

func (g *checkoutGateway) FetchSession(ctx context.Context, sessionRef string) (*paymentdomain.SessionStatus, error) {
	return &paymentdomain.SessionStatus{SessionRef: sessionRef}, nil
}

func (g *checkoutGateway) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.GatewayEvent, error) {
	return nil, paymentdomain.ErrEventIgnored
}

type fixture struct {
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	gateway     *checkoutGateway
	tiers       tierdomain.Service
	subs        subscriptiondomain.Service
	bookings    *service.Service
	withRepo    func(bookingdomain.Repository) *service.Service
	institution snowflake.ID
	course      snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	gw := &checkoutGateway{}

	tiers := tierservice.NewService(tierservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: tierrepo.Provide()})
	for plan, rate := range map[tierdomain.PlanType]int64{tierdomain.PlanStarter: 25, tierdomain.PlanProfessional: 15} {
		r := decimal.NewFromInt(rate)
		_, err := tiers.CreateTier(context.Background(), tierdomain.CreateRequest{
			Audience: tierdomain.AudienceInstitution, PlanType: plan, Name: string(plan),
			Price: decimal.NewFromInt(99), Currency: "USD", BillingCycle: tierdomain.BillingCycleMonthly,
			CommissionRate: &r,
		})
		require.NoError(t, err)
	}

	subs := subscriptionservice.NewService(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: subscriptionrepo.Provide(), TierRepo: tierrepo.Provide(), InstitutionRepo: institutionrepo.Provide(),
	})
	resolver := commission.NewResolver(commission.ResolverParams{
		DB: db, Log: log, Clock: clk,
		SubRepo: subscriptionrepo.Provide(), TierRepo: tierrepo.Provide(), InstitutionRepo: institutionrepo.Provide(),
	})
	payments := paymentservice.NewService(paymentservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: paymentrepo.Provide(), BookingRepo: bookingrepo.Provide(), ViolationRepo: reconciliationrepo.Provide(),
		Gateway: gw,
	})
	settings := settingsservice.NewService(settingsservice.Params{
		DB: db, Log: log, Clock: clk, Repo: settingsrepo.Provide(),
		Cfg: config.Config{Gateway: config.GatewayConfig{SuccessURL: "https://app.example/ok", CancelURL: "https://app.example/cancel"}},
	})
	withRepo := func(repo bookingdomain.Repository) *service.Service {
		return service.NewService(service.Params{
			DB: db, Log: log, GenID: node, Clock: clk,
			Repo: repo, InstitutionRepo: institutionrepo.Provide(),
			Resolver: resolver, Payments: payments, Settings: settings,
		})
	}
	bookings := withRepo(bookingrepo.Provide())

	inst := institutiondomain.Institution{ID: node.Generate(), Name: "Lingua Centre", CreatedAt: clk.Now(), UpdatedAt: clk.Now()}
	require.NoError(t, db.Create(&inst).Error)
	course := institutiondomain.Course{
		ID: node.Generate(), InstitutionID: inst.ID, Title: "Spanish A1",
		BasePrice: decimal.NewFromInt(100), Currency: "USD", CreatedAt: clk.Now(), UpdatedAt: clk.Now(),
	}
	require.NoError(t, db.Create(&course).Error)

	return &fixture{
		db: db, node: node, clock: clk, gateway: gw, tiers: tiers, subs: subs, bookings: bookings, withRepo: withRepo,
		institution: inst.ID, course: course.ID,
	}
}

func (f *fixture) book(t *testing.T) *bookingdomain.CreateResult {
	t.Helper()
	res, err := f.bookings.CreateBooking(context.Background(), bookingdomain.CreateRequest{
		CourseID:  f.course.String(),
		StudentID: f.node.Generate().String(),
	})
	require.NoError(t, err)
	return res
}

func TestCreateBookingFreezesTierRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.subs.Create(ctx, subscriptiondomain.CreateRequest{
		Holder: tierdomain.AudienceInstitution, HolderID: f.institution.String(), PlanType: tierdomain.PlanStarter,
	})
	require.NoError(t, err)

	res := f.book(t)
	assert.Equal(t, bookingdomain.BookingStatusPaymentInitiated, res.Status)
	assert.Equal(t, commission.RateSourceTier, res.RateSource)
	assert.True(t, decimal.NewFromInt(25).Equal(res.Commission))
	assert.True(t, decimal.NewFromInt(125).Equal(res.TotalCharge))
	assert.Equal(t, "cs_"+res.BookingID, res.CheckoutSessionRef)
	assert.NotEmpty(t, res.CheckoutURL)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.True(t, decimal.NewFromInt(125).Equal(req.Amount))
	assert.Equal(t, "https://app.example/ok", req.SuccessURL)
	assert.Len(t, req.IdempotencyKey, 26)

	triple, err := f.bookings.Get(ctx, res.BookingID)
	require.NoError(t, err)
	require.NotNil(t, triple.Payment)
	require.NotNil(t, triple.Enrollment)
	assert.Equal(t, bookingdomain.PaymentStatusPending, triple.Payment.Status)
	assert.True(t, decimal.NewFromInt(125).Equal(triple.Payment.Amount))
	assert.Equal(t, bookingdomain.EnrollmentStatusPending, triple.Enrollment.PaymentStatus)
	assert.True(t, bookingdomain.AllowedTriple(triple.Booking.Status, triple.Payment.Status, triple.Enrollment.PaymentStatus))
}

func TestUpgradeAffectsOnlyNewBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateRequest{
		Holder: tierdomain.AudienceInstitution, HolderID: f.institution.String(), PlanType: tierdomain.PlanStarter,
	})
	require.NoError(t, err)
	before := f.book(t)

	_, err = f.subs.ChangeTier(ctx, tierdomain.AudienceInstitution, sub.ID.String(), tierdomain.PlanProfessional)
	require.NoError(t, err)
	after := f.book(t)

	assert.True(t, decimal.NewFromInt(15).Equal(after.CommissionRate))
	assert.True(t, decimal.NewFromInt(115).Equal(after.TotalCharge))

	old, err := f.bookings.Get(ctx, before.BookingID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(old.Booking.CommissionRate))
	assert.True(t, decimal.NewFromInt(25).Equal(old.Booking.CommissionAmount))
	assert.True(t, decimal.NewFromInt(125).Equal(old.Booking.TotalCharge))
}

func TestTierRepriceLeavesBookingsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.subs.Create(ctx, subscriptiondomain.CreateRequest{
		Holder: tierdomain.AudienceInstitution, HolderID: f.institution.String(), PlanType: tierdomain.PlanStarter,
	})
	require.NoError(t, err)
	booked := f.book(t)

	starter, err := f.tiers.ResolveTier(ctx, tierdomain.AudienceInstitution, tierdomain.PlanStarter, f.clock.Now())
	require.NoError(t, err)
	newRate := decimal.NewFromInt(30)
	f.clock.Advance(time.Hour)
	_, err = f.tiers.UpdateTier(ctx, tierdomain.UpdateRequest{
		Audience: tierdomain.AudienceInstitution, ID: starter.ID.String(), CommissionRate: &newRate,
	})
	require.NoError(t, err)

	triple, err := f.bookings.Get(ctx, booked.BookingID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(triple.Booking.CommissionRate))
	assert.True(t, decimal.NewFromInt(125).Equal(triple.Booking.TotalCharge))
}

func TestCreateBookingLegacyRate(t *testing.T) {
	f := newFixture(t)
	rate := decimal.RequireFromString("12.5")
	require.NoError(t, f.db.Model(&institutiondomain.Institution{}).
		Where("id = ?", f.institution).
		Update("legacy_commission_rate", rate).Error)

	res := f.book(t)
	assert.Equal(t, commission.RateSourceLegacyField, res.RateSource)
	assert.True(t, decimal.RequireFromString("12.50").Equal(res.Commission))
	assert.True(t, decimal.RequireFromString("112.50").Equal(res.TotalCharge))
}

func TestCreateBookingGatewayFailureFailsBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.subs.Create(context.Background(), subscriptiondomain.CreateRequest{
		Holder: tierdomain.AudienceInstitution, HolderID: f.institution.String(), PlanType: tierdomain.PlanStarter,
	})
	require.NoError(t, err)
	f.gateway.err = paymentdomain.ErrGatewayUnavailable

	res, err := f.bookings.CreateBooking(context.Background(), bookingdomain.CreateRequest{
		CourseID: f.course.String(), StudentID: f.node.Generate().String(),
	})
	require.ErrorIs(t, err, bookingdomain.ErrCheckoutFailed)
	assert.Equal(t, errs.ExternalGateway, errs.KindOf(err))
	require.NotNil(t, res)
	assert.Equal(t, bookingdomain.BookingStatusFailed, res.Status)

	triple, err := f.bookings.Get(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, bookingdomain.PaymentStatusFailed, triple.Payment.Status)
	assert.Equal(t, bookingdomain.EnrollmentStatusFailed, triple.Enrollment.PaymentStatus)
}

var errEnrollmentWrite = errors.New("enrollment write failed")

type failingEnrollmentRepo struct {
	bookingdomain.Repository
}

func (failingEnrollmentRepo) InsertEnrollment(ctx context.Context, db *gorm.DB, enrollment *bookingdomain.Enrollment) error {
	return errEnrollmentWrite
}

func TestCreateBookingRollsBackWhenEnrollmentWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.subs.Create(ctx, subscriptiondomain.CreateRequest{
		Holder: tierdomain.AudienceInstitution, HolderID: f.institution.String(), PlanType: tierdomain.PlanStarter,
	})
	require.NoError(t, err)

	broken := f.withRepo(failingEnrollmentRepo{Repository: bookingrepo.Provide()})
	_, err = broken.CreateBooking(ctx, bookingdomain.CreateRequest{CourseID: f.course.String(), StudentID: "7"})
	require.ErrorIs(t, err, errEnrollmentWrite)
	assert.Empty(t, f.gateway.requests)

	for _, model := range []any{&bookingdomain.Booking{}, &bookingdomain.Payment{}, &bookingdomain.Enrollment{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}

	res := f.book(t)
	assert.Equal(t, bookingdomain.BookingStatusPaymentInitiated, res.Status)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.bookings.CreateBooking(ctx, bookingdomain.CreateRequest{StudentID: "1"})
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidCourseID)
	_, err = f.bookings.CreateBooking(ctx, bookingdomain.CreateRequest{CourseID: f.course.String(), StudentID: "abc"})
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidStudentID)
	_, err = f.bookings.CreateBooking(ctx, bookingdomain.CreateRequest{CourseID: f.node.Generate().String(), StudentID: "7"})
	assert.ErrorIs(t, err, institutiondomain.ErrCourseNotFound)

	_, err = f.bookings.CreateBooking(ctx, bookingdomain.CreateRequest{CourseID: f.course.String(), StudentID: "7"})
	assert.ErrorIs(t, err, commission.ErrNoEffectiveRate)

	var count int64
	require.NoError(t, f.db.Model(&bookingdomain.Booking{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateBookingCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&institutiondomain.Course{}).Where("id = ?", f.course).Update("currency", "EUR").Error)

	_, err := f.bookings.CreateBooking(context.Background(), bookingdomain.CreateRequest{CourseID: f.course.String(), StudentID: "7"})
	assert.ErrorIs(t, err, bookingdomain.ErrCurrencyMismatch)
}

func TestCleanupLeavesLinkedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.subs.Create(ctx, subscriptiondomain.CreateRequest{
		Holder: tierdomain.AudienceInstitution, HolderID: f.institution.String(), PlanType: tierdomain.PlanStarter,
	})
	require.NoError(t, err)
	res := f.book(t)

	f.clock.Advance(31 * 24 * time.Hour)
	deleted, err := f.bookings.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = f.bookings.Get(ctx, res.BookingID)
	assert.ErrorIs(t, err, bookingdomain.ErrBookingNotFound)
	var payments int64
	require.NoError(t, f.db.Model(&bookingdomain.Payment{}).Count(&payments).Error)
	assert.EqualValues(t, 1, payments)

	_, err = f.bookings.Cleanup(ctx, 0)
	assert.ErrorIs(t, err, bookingdomain.ErrInvalidCutoff)
}
