package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/observability/metrics"
	"github.com/smallbiznis/lingohub/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	reconciliationdomain "github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	"github.com/smallbiznis/lingohub/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          paymentdomain.Repository
	BookingRepo   bookingdomain.Repository
	ViolationRepo reconciliationdomain.Repository
	Gateway       paymentdomain.Gateway
	Providers     *adapters.Registry `optional:"true"`
	Metrics       *metrics.Metrics   `optional:"true"`
}

// Service is the payment state machine. Every delivery path (checkout
// creation, webhook, poll, repair) moves a booking triple through Apply.
type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          paymentdomain.Repository
	bookingRepo   bookingdomain.Repository
	violationRepo reconciliationdomain.Repository
	gateway       paymentdomain.Gateway
	providers     *adapters.Registry
	metrics       *metrics.Metrics
}

func NewService(p Params) *Service {
	providers := p.Providers
	if providers == nil && p.Gateway != nil {
		providers = adapters.NewRegistry(staticProvider(p.Gateway.Provider()))
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		bookingRepo:   p.BookingRepo,
		violationRepo: p.ViolationRepo,
		gateway:       p.Gateway,
		providers:     providers,
		metrics:       p.Metrics,
	}
}

func (s *Service) Gateway() paymentdomain.Gateway {
	return s.gateway
}

// Apply moves the addressed booking, payment and enrollment to the event's
// target triple in one transaction. Re-delivery of an applied event is a
// no-op. A transition that would move any terminal record is rejected and
// recorded as a consistency violation.
func (s *Service) Apply(ctx context.Context, ev paymentdomain.Event) (*paymentdomain.Outcome, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	var (
		outcome  *paymentdomain.Outcome
		rejected string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, rejected, err = s.applyTx(ctx, tx, ev, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, ev, outcome, rejected)
}

// staticProvider registers the live gateway's name when no registry is wired.
type staticProvider string

func (p staticProvider) Provider() string { return string(p) }

func (p staticProvider) NewGateway(paymentdomain.GatewayConfig) (paymentdomain.Gateway, error) {
	return nil, paymentdomain.ErrProviderNotFound
}

// HandleWebhook verifies a provider delivery, logs it for dedupe and applies
// it. The dedupe row and the transition commit together.
func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*paymentdomain.Outcome, error) {
	provider = paymentdomain.NormalizeProvider(provider)
	if err := s.providers.CheckWebhook(provider, s.gateway.Provider()); err != nil {
		return nil, err
	}

	gwEvent, err := s.gateway.ParseWebhook(ctx, payload, headers)
	if err != nil {
		return nil, err
	}
	if gwEvent == nil || strings.TrimSpace(gwEvent.ProviderEventID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	ev := paymentdomain.Event{
		SessionRef:    gwEvent.SessionRef,
		Kind:          gwEvent.Kind,
		TransactionID: gwEvent.TransactionID,
		Source:        paymentdomain.SourceWebhook,
	}
	if gwEvent.SessionRef == "" {
		if id, err := snowflake.ParseString(gwEvent.BookingID); err == nil && id > 0 {
			ev.BookingID = id
		}
	}
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &paymentdomain.PaymentEvent{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: gwEvent.ProviderEventID,
		EventType:       gwEvent.Type,
		SessionRef:      gwEvent.SessionRef,
		Payload:         datatypes.JSON(gwEvent.Payload),
		ReceivedAt:      now,
	}

	var (
		outcome  *paymentdomain.Outcome
		rejected string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertEvent(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			return paymentdomain.ErrEventAlreadyProcessed
		}
		outcome, rejected, err = s.applyTx(ctx, tx, ev, gwEvent.ProviderEventID)
		if err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, record.ID, now)
	})
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			s.log.Info("duplicate webhook delivery",
				zap.String("provider", provider),
				zap.String("provider_event_id", gwEvent.ProviderEventID),
			)
		}
		return nil, err
	}
	return s.finish(ctx, ev, outcome, rejected)
}

// SyncStatus asks the gateway for the authoritative session state and applies
// it. An open session returns the current triple unchanged.
func (s *Service) SyncStatus(ctx context.Context, sessionRef string) (*paymentdomain.Outcome, error) {
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return nil, paymentdomain.ErrInvalidSessionRef
	}

	status, err := s.gateway.FetchSession(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if status.Kind == "" {
		booking, err := s.bookingRepo.FindBySessionRef(ctx, s.db, sessionRef)
		if err != nil {
			return nil, err
		}
		if booking == nil {
			return nil, paymentdomain.ErrBookingNotFound
		}
		triple, err := s.bookingRepo.LoadTriple(ctx, s.db, booking.ID)
		if err != nil {
			return nil, err
		}
		return &paymentdomain.Outcome{Triple: *triple}, nil
	}

	return s.Apply(ctx, paymentdomain.Event{
		SessionRef:    sessionRef,
		Kind:          status.Kind,
		TransactionID: status.TransactionID,
		Source:        paymentdomain.SourcePoll,
	})
}

// SyncBooking polls the gateway for the booking's checkout session.
func (s *Service) SyncBooking(ctx context.Context, rawBookingID string) (*paymentdomain.Outcome, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawBookingID))
	if err != nil || id <= 0 {
		return nil, bookingdomain.ErrInvalidBookingID
	}
	booking, err := s.bookingRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, paymentdomain.ErrBookingNotFound
	}
	if booking.CheckoutSessionRef == nil || strings.TrimSpace(*booking.CheckoutSessionRef) == "" {
		return nil, paymentdomain.ErrNoCheckoutSession
	}
	return s.SyncStatus(ctx, *booking.CheckoutSessionRef)
}

func (s *Service) applyTx(ctx context.Context, tx *gorm.DB, ev paymentdomain.Event, correlationID string) (*paymentdomain.Outcome, string, error) {
	booking, err := s.lockBooking(ctx, tx, ev)
	if err != nil {
		return nil, "", err
	}
	payment, err := s.bookingRepo.FindPaymentByBooking(ctx, tx, booking.ID)
	if err != nil {
		return nil, "", err
	}
	enrollment, err := s.bookingRepo.FindEnrollmentByBooking(ctx, tx, booking.ID)
	if err != nil {
		return nil, "", err
	}

	outcome := &paymentdomain.Outcome{Event: ev.Kind}
	now := s.clock.Now()

	plan, reason := planTransition(booking, payment, enrollment, paymentdomain.TargetFor(ev.Kind), ev.SessionRef)
	if reason != "" {
		if correlationID == "" {
			_, correlationID = correlation.EnsureCorrelationID(ctx)
		}
		violation := reconciliationdomain.ConsistencyViolation{
			ID:            s.genID.Generate(),
			Kind:          reconciliationdomain.ViolationRejectedTransition,
			EntityType:    reconciliationdomain.EntityBooking,
			EntityID:      booking.ID,
			BookingID:     &booking.ID,
			Detail:        fmt.Sprintf("%s via %s: %s", ev.Kind, ev.Source, reason),
			Source:        reconciliationdomain.SourceStateMachine,
			CorrelationID: correlationID,
			DetectedAt:    now,
		}
		if err := s.violationRepo.InsertViolations(ctx, tx, []reconciliationdomain.ConsistencyViolation{violation}); err != nil {
			return nil, "", err
		}
		outcome.Triple = bookingdomain.Triple{Booking: *booking, Payment: payment, Enrollment: enrollment}
		return outcome, reason, nil
	}

	refsChanged := attachRefs(booking, payment, ev)
	if plan.booking || refsChanged {
		booking.UpdatedAt = now
		if err := s.bookingRepo.UpdateBooking(ctx, tx, booking); err != nil {
			return nil, "", err
		}
	}
	if plan.payment || refsChanged {
		payment.UpdatedAt = now
		if err := s.bookingRepo.UpdatePayment(ctx, tx, payment); err != nil {
			return nil, "", err
		}
	}
	if plan.enrollment {
		enrollment.UpdatedAt = now
		if err := s.bookingRepo.UpdateEnrollment(ctx, tx, enrollment); err != nil {
			return nil, "", err
		}
	}

	outcome.Applied = plan.any()
	outcome.Triple = bookingdomain.Triple{Booking: *booking, Payment: payment, Enrollment: enrollment}
	return outcome, "", nil
}

func (s *Service) lockBooking(ctx context.Context, tx *gorm.DB, ev paymentdomain.Event) (*bookingdomain.Booking, error) {
	var (
		booking *bookingdomain.Booking
		err     error
	)
	if ev.BookingID > 0 {
		booking, err = s.bookingRepo.FindByIDForUpdate(ctx, tx, ev.BookingID)
	} else {
		booking, err = s.bookingRepo.FindBySessionRefForUpdate(ctx, tx, strings.TrimSpace(ev.SessionRef))
	}
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, paymentdomain.ErrBookingNotFound
	}
	return booking, nil
}

func (s *Service) finish(ctx context.Context, ev paymentdomain.Event, outcome *paymentdomain.Outcome, rejected string) (*paymentdomain.Outcome, error) {
	fields := []zap.Field{
		zap.String("event", string(ev.Kind)),
		zap.String("source", string(ev.Source)),
		zap.String("booking_id", outcome.Triple.Booking.ID.String()),
	}
	switch {
	case rejected != "":
		s.metrics.RecordPaymentTransition(ctx, string(ev.Kind), "rejected")
		s.log.Warn("payment transition rejected", append(fields, zap.String("reason", rejected))...)
		return outcome, fmt.Errorf("%w: %s", paymentdomain.ErrTransitionRejected, rejected)
	case outcome.Applied:
		s.metrics.RecordPaymentTransition(ctx, string(ev.Kind), "applied")
		s.log.Info("payment transition applied", append(fields, zap.String("booking_status", string(outcome.Triple.Booking.Status)))...)
	default:
		s.metrics.RecordPaymentTransition(ctx, string(ev.Kind), "noop")
		s.log.Debug("payment transition already applied", fields...)
	}
	return outcome, nil
}

type transitionPlan struct {
	booking    bool
	payment    bool
	enrollment bool
}

func (p transitionPlan) any() bool {
	return p.booking || p.payment || p.enrollment
}

// planTransition decides every move before anything is written. Records may
// only move forward and a terminal value is final. The returned reason is
// non-empty when the event must be rejected as a whole.
func planTransition(
	booking *bookingdomain.Booking,
	payment *bookingdomain.Payment,
	enrollment *bookingdomain.Enrollment,
	target paymentdomain.Target,
	sessionRef string,
) (transitionPlan, string) {
	var plan transitionPlan

	if payment == nil {
		return plan, "booking has no linked payment"
	}
	if enrollment == nil {
		return plan, "booking has no linked enrollment"
	}
	if sessionRef != "" && booking.CheckoutSessionRef != nil && *booking.CheckoutSessionRef != sessionRef {
		return plan, fmt.Sprintf("session %s does not belong to booking", sessionRef)
	}

	switch {
	case !booking.Status.Valid():
		return plan, fmt.Sprintf("booking has unrecognised status %q", booking.Status)
	case !payment.Status.Valid():
		return plan, fmt.Sprintf("payment has unrecognised status %q", payment.Status)
	case !enrollment.PaymentStatus.Valid():
		return plan, fmt.Sprintf("enrollment has unrecognised status %q", enrollment.PaymentStatus)
	}

	if booking.Status != target.Booking {
		if booking.Status.Terminal() || booking.Status.Rank() > target.Booking.Rank() {
			return plan, fmt.Sprintf("booking %s cannot move to %s", booking.Status, target.Booking)
		}
		plan.booking = true
	}
	if payment.Status != target.Payment {
		if payment.Status.Terminal() {
			return plan, fmt.Sprintf("payment %s cannot move to %s", payment.Status, target.Payment)
		}
		plan.payment = true
	}
	if enrollment.PaymentStatus != target.Enrollment {
		if enrollment.PaymentStatus.Terminal() {
			return plan, fmt.Sprintf("enrollment %s cannot move to %s", enrollment.PaymentStatus, target.Enrollment)
		}
		plan.enrollment = true
	}

	if plan.booking {
		booking.Status = target.Booking
	}
	if plan.payment {
		payment.Status = target.Payment
	}
	if plan.enrollment {
		enrollment.PaymentStatus = target.Enrollment
	}
	return plan, ""
}

// attachRefs fills gateway references that are still empty. It never
// overwrites a stored reference.
func attachRefs(booking *bookingdomain.Booking, payment *bookingdomain.Payment, ev paymentdomain.Event) bool {
	changed := false
	if ref := strings.TrimSpace(ev.SessionRef); ref != "" {
		if booking.CheckoutSessionRef == nil {
			booking.CheckoutSessionRef = &ref
			changed = true
		}
		if payment.GatewaySessionRef == nil {
			payment.GatewaySessionRef = &ref
			changed = true
		}
	}
	if txID := strings.TrimSpace(ev.TransactionID); txID != "" && payment.GatewayTransactionID == nil {
		payment.GatewayTransactionID = &txID
		changed = true
	}
	return changed
}

func validateEvent(ev paymentdomain.Event) error {
	if !ev.Kind.Valid() {
		return paymentdomain.ErrInvalidEvent
	}
	if ev.BookingID <= 0 && strings.TrimSpace(ev.SessionRef) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}
