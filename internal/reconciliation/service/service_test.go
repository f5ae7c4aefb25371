package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/booking/bookingtest"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	bookingrepo "github.com/smallbiznis/lingohub/internal/booking/repository"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/migration"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/lingohub/internal/payment/repository"
	paymentservice "github.com/smallbiznis/lingohub/internal/payment/service"
	"github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	reconciliationrepo "github.com/smallbiznis/lingohub/internal/reconciliation/repository"
	"github.com/smallbiznis/lingohub/internal/reconciliation/service"
	"github.com/smallbiznis/lingohub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sessionGateway struct {
	sessions map[string]paymentdomain.SessionStatus
	err      error
	calls    int
}

func (g *sessionGateway) Provider() string { return "stripe" }

func (g *sessionGateway) CreateCheckout(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	return &paymentdomain.CheckoutSession{SessionRef: "cs_" + req.BookingID.String()}, nil
}

func (g *sessionGateway) FetchSession(ctx context.Context, sessionRef string) (*paymentdomain.SessionStatus, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	status := g.sessions[sessionRef]
	status.SessionRef = sessionRef
	return &status, nil
}

func (g *sessionGateway) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.GatewayEvent, error) {
	return nil, paymentdomain.ErrEventIgnored
}

type env struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	gateway *sessionGateway
	svc     *service.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.Open(t)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	gw := &sessionGateway{sessions: map[string]paymentdomain.SessionStatus{}}

	payments := paymentservice.NewService(paymentservice.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         clk,
		Repo:          paymentrepo.Provide(),
		BookingRepo:   bookingrepo.Provide(),
		ViolationRepo: reconciliationrepo.Provide(),
		Gateway:       gw,
	})
	svc := service.NewService(service.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        reconciliationrepo.Provide(),
		BookingRepo: bookingrepo.Provide(),
		Syncer:      payments,
	})
	return &env{db: db, node: node, clock: clk, gateway: gw, svc: svc}
}

func (e *env) deleteBooking(t *testing.T, id snowflake.ID) {
	t.Helper()
	require.NoError(t, e.db.Delete(&bookingdomain.Booking{}, "id = ?", id).Error)
}

func (e *env) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func kinds(v []domain.Violation) []domain.ViolationKind {
	out := make([]domain.ViolationKind, 0, len(v))
	for _, item := range v {
		out = append(out, item.Kind)
	}
	return out
}

func TestAuditClassifiesAndSorts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bookingtest.Seed(t, e.db, e.node, bookingtest.Options{})
	bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusCompleted, Payment: bookingdomain.PaymentStatusCompleted,
		Enrollment: bookingdomain.EnrollmentStatusPaid, SessionRef: "cs_ok",
	})
	mismatched := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{Booking: bookingdomain.BookingStatusCompleted})
	missing := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusPaymentInitiated, SessionRef: "cs_missing", NoPayment: true,
	})
	orphan := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{})
	e.deleteBooking(t, orphan.Booking.ID)
	bookingtest.Seed(t, e.db, e.node, bookingtest.Options{NoPayment: true, NoEnrollment: true})

	before := e.count(t, &domain.ConsistencyViolation{})
	violations, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, []domain.ViolationKind{
		domain.ViolationMismatchedStatus,
		domain.ViolationMissingPayment,
		domain.ViolationOrphanedEnrollment,
		domain.ViolationOrphanedPayment,
	}, kinds(violations))
	assert.Equal(t, mismatched.Booking.ID, violations[0].EntityID)
	assert.Equal(t, missing.Booking.ID, violations[1].EntityID)
	assert.Equal(t, orphan.Enrollment.ID, violations[2].EntityID)
	assert.Equal(t, domain.EntityEnrollment, violations[2].EntityType)
	assert.Equal(t, orphan.Payment.ID, violations[3].EntityID)
	require.NotNil(t, violations[3].BookingID)
	assert.Equal(t, orphan.Booking.ID, *violations[3].BookingID)
	assert.Equal(t, before, e.count(t, &domain.ConsistencyViolation{}))
}

func TestRepairFlagsOrphansOfDeletedBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	orphan := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{})
	e.deleteBooking(t, orphan.Booking.ID)

	violations, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, violations, 2)

	report, err := e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Examined)
	assert.Equal(t, 0, report.Repaired)
	assert.Equal(t, 2, report.Unrecoverable)

	current := bookingtest.Load(t, e.db, orphan)
	assert.Equal(t, bookingdomain.RepairStateUnrecoverable, current.Payment.RepairState)
	assert.Equal(t, bookingdomain.RepairStateUnrecoverable, current.Enrollment.RepairState)
	assert.Equal(t, bookingdomain.PaymentStatusPending, current.Payment.Status)
	require.NotNil(t, current.Payment.BookingID)
	assert.Equal(t, orphan.Booking.ID, *current.Payment.BookingID)

	again, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, again, 2)
	for _, v := range again {
		assert.True(t, v.Unrecoverable, v.Kind)
	}

	report, err = e.svc.Repair(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Repaired)
	assert.Equal(t, 2, report.Unrecoverable)
	assert.EqualValues(t, 1, e.count(t, &bookingdomain.Payment{}))
	assert.EqualValues(t, 1, e.count(t, &bookingdomain.Enrollment{}))
}

func TestRepairNeverMovesOrphanToAnotherBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	paid := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusCompleted, Payment: bookingdomain.PaymentStatusCompleted,
		SessionRef: "cs_paid", NoEnrollment: true,
	})
	waiting := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusPaymentInitiated, SessionRef: "cs_waiting", NoPayment: true,
	})

	gone := e.node.Generate()
	ref := "cs_waiting"
	payment := bookingdomain.Payment{
		ID:                e.node.Generate(),
		BookingID:         &gone,
		Status:            bookingdomain.PaymentStatusPending,
		GatewaySessionRef: &ref,
		Amount:            decimal.NewFromInt(120),
		CommissionAmount:  decimal.NewFromInt(20),
		CreatedAt:         e.clock.Now(),
		UpdatedAt:         e.clock.Now(),
	}
	require.NoError(t, e.db.Create(&payment).Error)
	enrollment := bookingdomain.Enrollment{
		ID:            e.node.Generate(),
		BookingID:     &gone,
		CourseID:      paid.Booking.CourseID,
		StudentID:     paid.Booking.StudentID,
		PaymentStatus: bookingdomain.EnrollmentStatusFailed,
		CreatedAt:     e.clock.Now(),
		UpdatedAt:     e.clock.Now(),
	}
	require.NoError(t, e.db.Create(&enrollment).Error)

	result, err := e.svc.Run(ctx, service.RunOptions{AutoRepair: true})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	for _, item := range result.Report.Items {
		assert.NotEqual(t, domain.RepairRelinked, item.Outcome, "%s %s", item.Violation.Kind, item.Detail)
	}

	var currentPayment bookingdomain.Payment
	require.NoError(t, e.db.Where("id = ?", payment.ID).Take(&currentPayment).Error)
	require.NotNil(t, currentPayment.BookingID)
	assert.Equal(t, gone, *currentPayment.BookingID)
	assert.Equal(t, bookingdomain.RepairStateUnrecoverable, currentPayment.RepairState)

	var currentEnrollment bookingdomain.Enrollment
	require.NoError(t, e.db.Where("id = ?", enrollment.ID).Take(&currentEnrollment).Error)
	require.NotNil(t, currentEnrollment.BookingID)
	assert.Equal(t, gone, *currentEnrollment.BookingID)
	assert.Equal(t, bookingdomain.RepairStateUnrecoverable, currentEnrollment.RepairState)

	// The paid booking keeps its status and gains no failed enrollment.
	after, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	for _, v := range after {
		if v.Kind == domain.ViolationMismatchedStatus {
			assert.NotEqual(t, paid.Booking.ID, v.EntityID, v.Detail)
		}
	}
	current := bookingtest.Load(t, e.db, paid)
	assert.Equal(t, bookingdomain.BookingStatusCompleted, current.Booking.Status)
	var enrolled, linkedPayments int64
	require.NoError(t, e.db.Model(&bookingdomain.Enrollment{}).Where("booking_id = ?", paid.Booking.ID).Count(&enrolled).Error)
	require.NoError(t, e.db.Model(&bookingdomain.Payment{}).Where("booking_id = ?", waiting.Booking.ID).Count(&linkedPayments).Error)
	assert.Zero(t, enrolled)
	assert.Zero(t, linkedPayments)
}

func TestRepairLinksMissingEnrollment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusPaymentInitiated, SessionRef: "cs_e", NoEnrollment: true,
	})
	enrollment := bookingdomain.Enrollment{
		ID:            e.node.Generate(),
		CourseID:      seeded.Booking.CourseID,
		StudentID:     seeded.Booking.StudentID,
		PaymentStatus: bookingdomain.EnrollmentStatusPending,
		CreatedAt:     e.clock.Now(),
		UpdatedAt:     e.clock.Now(),
	}
	require.NoError(t, e.db.Create(&enrollment).Error)

	violations, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []domain.ViolationKind{domain.ViolationMissingEnrollment}, kinds(violations))

	report, err := e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)
	assert.Equal(t, domain.RepairRelinked, report.Items[0].Outcome)

	var current bookingdomain.Enrollment
	require.NoError(t, e.db.Where("id = ?", enrollment.ID).Take(&current).Error)
	require.NotNil(t, current.BookingID)
	assert.Equal(t, seeded.Booking.ID, *current.BookingID)

	report, err = e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Repaired)
	assert.Equal(t, 1, report.AlreadyConsistent)
}

func TestRepairMissingWithoutCandidateIsUnrecoverable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusPaymentInitiated, NoPayment: true,
	})

	violations, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	report, err := e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unrecoverable)
	assert.EqualValues(t, 0, e.count(t, &bookingdomain.Payment{}))
}

func TestRepairResyncsMismatchFromGateway(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusCompleted, SessionRef: "cs_paid",
	})
	e.gateway.sessions["cs_paid"] = paymentdomain.SessionStatus{
		BookingID: seeded.Booking.ID.String(), Kind: paymentdomain.EventPaymentSucceeded, TransactionID: "pi_9",
	}

	violations, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []domain.ViolationKind{domain.ViolationMismatchedStatus}, kinds(violations))

	report, err := e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)
	assert.Equal(t, domain.RepairResynced, report.Items[0].Outcome)

	current := bookingtest.Load(t, e.db, seeded)
	assert.True(t, bookingdomain.AllowedTriple(current.Booking.Status, current.Payment.Status, current.Enrollment.PaymentStatus))
	assert.Equal(t, bookingdomain.PaymentStatusCompleted, current.Payment.Status)
	assert.Equal(t, bookingdomain.EnrollmentStatusPaid, current.Enrollment.PaymentStatus)

	report, err = e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Repaired)
	assert.Equal(t, 1, report.AlreadyConsistent)
}

func TestRepairMismatchNeverGuessesStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	noRef := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{Booking: bookingdomain.BookingStatusCompleted})
	open := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusCompleted, SessionRef: "cs_open",
	})
	conflict := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusCompleted, Payment: bookingdomain.PaymentStatusFailed, SessionRef: "cs_conflict",
	})
	e.gateway.sessions["cs_conflict"] = paymentdomain.SessionStatus{Kind: paymentdomain.EventPaymentSucceeded}

	violations, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, violations, 3)

	report, err := e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Repaired)
	assert.Equal(t, 3, report.Unrecoverable)

	for _, seeded := range []bookingdomain.Triple{noRef, open, conflict} {
		current := bookingtest.Load(t, e.db, seeded)
		assert.Equal(t, seeded.Payment.Status, current.Payment.Status)
		assert.Equal(t, seeded.Enrollment.PaymentStatus, current.Enrollment.PaymentStatus)
	}
	assert.Equal(t, 2, e.gateway.calls)

	var rejected int64
	require.NoError(t, e.db.Model(&domain.ConsistencyViolation{}).
		Where("kind = ?", domain.ViolationRejectedTransition).Count(&rejected).Error)
	assert.EqualValues(t, 1, rejected)
}

func TestUnrecognisedStoredStatusIsReportedNotMoved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusPaymentInitiated, SessionRef: "cs_legacy",
	})
	require.NoError(t, e.db.Model(&bookingdomain.Booking{}).
		Where("id = ?", seeded.Booking.ID).Update("status", "REFUNDED").Error)
	e.gateway.sessions["cs_legacy"] = paymentdomain.SessionStatus{Kind: paymentdomain.EventPaymentSucceeded}

	violations, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, domain.ViolationMismatchedStatus, violations[0].Kind)
	assert.Equal(t, seeded.Booking.ID, violations[0].EntityID)

	report, err := e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unrecoverable)

	current := bookingtest.Load(t, e.db, seeded)
	assert.Equal(t, bookingdomain.BookingStatus("REFUNDED"), current.Booking.Status)
	assert.Equal(t, bookingdomain.PaymentStatusPending, current.Payment.Status)
	assert.Equal(t, bookingdomain.EnrollmentStatusPending, current.Enrollment.PaymentStatus)
}

func TestRepairGatewayOutageIsUnrecoverable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
		Booking: bookingdomain.BookingStatusCompleted, SessionRef: "cs_down",
	})
	e.gateway.err = paymentdomain.ErrGatewayUnavailable

	violations, err := e.svc.Audit(ctx, 0)
	require.NoError(t, err)
	report, err := e.svc.Repair(ctx, violations)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unrecoverable)
	assert.Contains(t, report.Items[0].Detail, "gateway status unavailable")
}

func TestRunRecordsAndPagesViolations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		bookingtest.Seed(t, e.db, e.node, bookingtest.Options{
			Booking: bookingdomain.BookingStatusPaymentInitiated, NoEnrollment: true,
		})
	}

	result, err := e.svc.Run(ctx, service.RunOptions{Record: true})
	require.NoError(t, err)
	assert.Len(t, result.Violations, 3)
	assert.Nil(t, result.Report)
	assert.NotEmpty(t, result.CorrelationID)

	page, err := e.svc.ListViolations(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, domain.SourceAuditor, page.Items[0].Source)
	assert.Equal(t, result.CorrelationID, page.Items[0].CorrelationID)
	assert.Greater(t, page.Items[0].ID, page.Items[1].ID)

	next, err := e.svc.ListViolations(ctx, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)
	assert.Less(t, next.Items[0].ID, page.Items[1].ID)

	_, err = e.svc.ListViolations(ctx, "abc", 2)
	assert.ErrorIs(t, err, service.ErrInvalidCursor)

	result, err = e.svc.Run(ctx, service.RunOptions{AutoRepair: true})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Equal(t, 3, result.Report.Unrecoverable)
	assert.EqualValues(t, 3, e.count(t, &domain.ConsistencyViolation{}))
}
