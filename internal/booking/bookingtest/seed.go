// Package bookingtest seeds booking triples in arbitrary, even inconsistent,
// states for tests.
package bookingtest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/booking/domain"
	"github.com/smallbiznis/lingohub/internal/commission"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type Options struct {
	Booking      domain.BookingStatus
	Payment      domain.PaymentStatus
	Enrollment   domain.EnrollmentStatus
	SessionRef   string
	NoPayment    bool
	NoEnrollment bool
	CreatedAt    time.Time
}

// Seed writes a booking with its payment and enrollment. Zero statuses
// default to PENDING.
func Seed(t testing.TB, db *gorm.DB, node *snowflake.Node, opts Options) domain.Triple {
	t.Helper()
	if opts.Booking == "" {
		opts.Booking = domain.BookingStatusPending
	}
	if opts.Payment == "" {
		opts.Payment = domain.PaymentStatusPending
	}
	if opts.Enrollment == "" {
		opts.Enrollment = domain.EnrollmentStatusPending
	}
	if opts.CreatedAt.IsZero() {
		opts.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	booking := domain.Booking{
		ID:               node.Generate(),
		CourseID:         node.Generate(),
		StudentID:        node.Generate(),
		Status:           opts.Booking,
		Amount:           decimal.NewFromInt(100),
		CommissionRate:   decimal.NewFromInt(20),
		CommissionAmount: decimal.NewFromInt(20),
		TotalCharge:      decimal.NewFromInt(120),
		Currency:         "USD",
		RateSource:       commission.RateSourceTier,
		IdempotencyKey:   node.Generate().String(),
		CreatedAt:        opts.CreatedAt,
		UpdatedAt:        opts.CreatedAt,
	}
	if opts.SessionRef != "" {
		ref := opts.SessionRef
		booking.CheckoutSessionRef = &ref
	}
	require.NoError(t, db.Create(&booking).Error)

	triple := domain.Triple{Booking: booking}
	bookingID := booking.ID
	if !opts.NoPayment {
		payment := domain.Payment{
			ID:               node.Generate(),
			BookingID:        &bookingID,
			Status:           opts.Payment,
			Amount:           booking.TotalCharge,
			CommissionAmount: booking.CommissionAmount,
			CreatedAt:        opts.CreatedAt,
			UpdatedAt:        opts.CreatedAt,
		}
		if opts.SessionRef != "" {
			ref := opts.SessionRef
			payment.GatewaySessionRef = &ref
		}
		require.NoError(t, db.Create(&payment).Error)
		triple.Payment = &payment
	}
	if !opts.NoEnrollment {
		enrollment := domain.Enrollment{
			ID:            node.Generate(),
			BookingID:     &bookingID,
			CourseID:      booking.CourseID,
			StudentID:     booking.StudentID,
			PaymentStatus: opts.Enrollment,
			CreatedAt:     opts.CreatedAt,
			UpdatedAt:     opts.CreatedAt,
		}
		require.NoError(t, db.Create(&enrollment).Error)
		triple.Enrollment = &enrollment
	}
	return triple
}

// Load reads the current rows of a seeded triple by primary key, including
// rows whose booking link has been cleared.
func Load(t testing.TB, db *gorm.DB, seeded domain.Triple) domain.Triple {
	t.Helper()
	var out domain.Triple
	err := db.Where("id = ?", seeded.Booking.ID).Take(&out.Booking).Error
	if err != nil {
		out.Booking = domain.Booking{}
	}
	if seeded.Payment != nil {
		var p domain.Payment
		require.NoError(t, db.Where("id = ?", seeded.Payment.ID).Take(&p).Error)
		out.Payment = &p
	}
	if seeded.Enrollment != nil {
		var e domain.Enrollment
		require.NoError(t, db.Where("id = ?", seeded.Enrollment.ID).Take(&e).Error)
		out.Enrollment = &e
	}
	return out
}
