package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/commission"
	institutiondomain "github.com/smallbiznis/lingohub/internal/institution/domain"
	"github.com/smallbiznis/lingohub/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	paymentservice "github.com/smallbiznis/lingohub/internal/payment/service"
	settingsdomain "github.com/smallbiznis/lingohub/internal/settings/domain"
	settingsservice "github.com/smallbiznis/lingohub/internal/settings/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Repo            bookingdomain.Repository
	InstitutionRepo institutiondomain.Repository
	Resolver        *commission.Resolver
	Payments        *paymentservice.Service
	Settings        *settingsservice.Service
	Metrics         *metrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            bookingdomain.Repository
	institutionRepo institutiondomain.Repository
	resolver        *commission.Resolver
	payments        *paymentservice.Service
	settings        *settingsservice.Service
	metrics         *metrics.Metrics
	validate        *validator.Validate
}

func NewService(p Params) *Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("booking.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		institutionRepo: p.InstitutionRepo,
		resolver:        p.Resolver,
		payments:        p.Payments,
		settings:        p.Settings,
		metrics:         p.Metrics,
		validate:        validator.New(),
	}
}

// CreateBooking freezes the course price and the institution's effective
// commission rate, opens the booking triple and starts a gateway checkout.
// When the checkout cannot be opened the booking is failed and returned
// together with the error.
func (s *Service) CreateBooking(ctx context.Context, req bookingdomain.CreateRequest) (*bookingdomain.CreateResult, error) {
	courseID, studentID, err := s.parseRequest(req)
	if err != nil {
		return nil, err
	}

	currency, err := s.settings.Get(ctx, settingsdomain.KeyCurrency)
	if err != nil {
		return nil, err
	}
	successURL, err := s.settings.Get(ctx, settingsdomain.KeyCheckoutSuccessURL)
	if err != nil {
		return nil, err
	}
	cancelURL, err := s.settings.Get(ctx, settingsdomain.KeyCheckoutCancelURL)
	if err != nil {
		return nil, err
	}

	var (
		booking *bookingdomain.Booking
		course  *institutiondomain.Course
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, err = s.institutionRepo.FindCourse(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if course == nil {
			return institutiondomain.ErrCourseNotFound
		}
		if !strings.EqualFold(course.Currency, currency) {
			return fmt.Errorf("%w: course priced in %s, platform settles in %s", bookingdomain.ErrCurrencyMismatch, course.Currency, currency)
		}

		now := s.clock.Now()
		resolution, err := s.resolver.EffectiveRate(ctx, tx, course.InstitutionID, now)
		if err != nil {
			return err
		}
		charge, err := commission.ComputeCharge(course.BasePrice, resolution.EffectiveRate())
		if err != nil {
			return fmt.Errorf("%w: %v", bookingdomain.ErrInvalidPrice, err)
		}

		booking = &bookingdomain.Booking{
			ID:               s.genID.Generate(),
			CourseID:         course.ID,
			StudentID:        studentID,
			Status:           bookingdomain.BookingStatusPending,
			Amount:           charge.BasePrice,
			CommissionRate:   charge.Rate,
			CommissionAmount: charge.Commission,
			TotalCharge:      charge.TotalCharge,
			Currency:         strings.ToUpper(currency),
			RateSource:       resolution.Source(),
			IdempotencyKey:   ulid.Make().String(),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.InsertBooking(ctx, tx, booking); err != nil {
			return err
		}
		if err := s.repo.InsertPayment(ctx, tx, &bookingdomain.Payment{
			ID:               s.genID.Generate(),
			BookingID:        &booking.ID,
			Status:           bookingdomain.PaymentStatusPending,
			Amount:           charge.TotalCharge,
			CommissionAmount: charge.Commission,
			CreatedAt:        now,
			UpdatedAt:        now,
		}); err != nil {
			return err
		}
		return s.repo.InsertEnrollment(ctx, tx, &bookingdomain.Enrollment{
			ID:            s.genID.Generate(),
			BookingID:     &booking.ID,
			CourseID:      course.ID,
			StudentID:     studentID,
			PaymentStatus: bookingdomain.EnrollmentStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordBookingCreated(ctx, string(booking.RateSource))
	logFields := []zap.Field{
		zap.String("booking_id", booking.ID.String()),
		zap.String("course_id", course.ID.String()),
		zap.String("rate_source", string(booking.RateSource)),
		zap.String("commission_rate", booking.CommissionRate.String()),
	}

	result := toResult(booking)
	session, err := s.payments.Gateway().CreateCheckout(ctx, paymentdomain.CheckoutRequest{
		BookingID:      booking.ID,
		IdempotencyKey: booking.IdempotencyKey,
		Description:    course.Title,
		Amount:         booking.TotalCharge,
		Currency:       booking.Currency,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
	})
	if err != nil {
		s.log.Error("checkout could not be opened, failing booking", append(logFields, zap.Error(err))...)
		outcome, applyErr := s.payments.Apply(ctx, paymentdomain.Event{
			BookingID: booking.ID,
			Kind:      paymentdomain.EventPaymentFailed,
			Source:    paymentdomain.SourceCheckout,
		})
		if applyErr != nil {
			return result, fmt.Errorf("%w: %w (booking not failed: %v)", bookingdomain.ErrCheckoutFailed, err, applyErr)
		}
		result.Status = outcome.Triple.Booking.Status
		return result, fmt.Errorf("%w: %w", bookingdomain.ErrCheckoutFailed, err)
	}

	outcome, err := s.payments.Apply(ctx, paymentdomain.Event{
		BookingID:  booking.ID,
		SessionRef: session.SessionRef,
		Kind:       paymentdomain.EventCheckoutCreated,
		Source:     paymentdomain.SourceCheckout,
	})
	if err != nil {
		return result, err
	}

	result.Status = outcome.Triple.Booking.Status
	result.CheckoutSessionRef = session.SessionRef
	result.CheckoutURL = session.URL
	s.log.Info("booking created", logFields...)
	return result, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (*bookingdomain.Triple, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return nil, bookingdomain.ErrInvalidBookingID
	}
	triple, err := s.repo.LoadTriple(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if triple == nil {
		return nil, bookingdomain.ErrBookingNotFound
	}
	return triple, nil
}

// Cleanup deletes unfinished bookings older than cutoffDays. It does not
// touch linked payments or enrollments.
func (s *Service) Cleanup(ctx context.Context, cutoffDays int) (int64, error) {
	if cutoffDays < 1 {
		return 0, bookingdomain.ErrInvalidCutoff
	}
	cutoff := s.clock.Now().Add(-time.Duration(cutoffDays) * 24 * time.Hour)
	deleted, err := s.repo.DeleteStale(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Warn("stale bookings deleted",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
	return deleted, nil
}

func (s *Service) parseRequest(req bookingdomain.CreateRequest) (snowflake.ID, snowflake.ID, error) {
	req.CourseID = strings.TrimSpace(req.CourseID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "StudentID" {
			return 0, 0, bookingdomain.ErrInvalidStudentID
		}
		return 0, 0, bookingdomain.ErrInvalidCourseID
	}
	courseID, err := snowflake.ParseString(req.CourseID)
	if err != nil || courseID <= 0 {
		return 0, 0, bookingdomain.ErrInvalidCourseID
	}
	studentID, err := snowflake.ParseString(req.StudentID)
	if err != nil || studentID <= 0 {
		return 0, 0, bookingdomain.ErrInvalidStudentID
	}
	return courseID, studentID, nil
}

func toResult(b *bookingdomain.Booking) *bookingdomain.CreateResult {
	result := &bookingdomain.CreateResult{
		BookingID:      b.ID.String(),
		Status:         b.Status,
		Amount:         b.Amount,
		CommissionRate: b.CommissionRate,
		Commission:     b.CommissionAmount,
		TotalCharge:    b.TotalCharge,
		Currency:       b.Currency,
		RateSource:     b.RateSource,
	}
	if b.CheckoutSessionRef != nil {
		result.CheckoutSessionRef = *b.CheckoutSessionRef
	}
	return result
}
