package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/errs"
	"github.com/smallbiznis/lingohub/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	"github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatusSyncer fetches the gateway's view of a checkout session and applies
// it under the forward-only rules.
type StatusSyncer interface {
	SyncStatus(ctx context.Context, sessionRef string) (*paymentdomain.Outcome, error)
}

type repairFunc func(ctx context.Context, v domain.Violation) (domain.RepairItem, error)

// Reconciler repairs violations one kind at a time. It relinks records and
// resyncs statuses from the gateway. It never deletes a row and never infers
// a status on its own.
type Reconciler struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    bookingdomain.Repository
	syncer  StatusSyncer
	repairs map[domain.ViolationKind]repairFunc
}

func NewReconciler(db *gorm.DB, log *zap.Logger, clk clock.Clock, repo bookingdomain.Repository, syncer StatusSyncer) *Reconciler {
	r := &Reconciler{
		db:     db,
		log:    log,
		clock:  clk,
		repo:   repo,
		syncer: syncer,
	}
	r.repairs = map[domain.ViolationKind]repairFunc{
		domain.ViolationOrphanedPayment:    r.repairOrphanedPayment,
		domain.ViolationOrphanedEnrollment: r.repairOrphanedEnrollment,
		domain.ViolationMissingPayment:     r.repairMissingPayment,
		domain.ViolationMissingEnrollment:  r.repairMissingEnrollment,
		domain.ViolationMismatchedStatus:   r.repairMismatchedStatus,
	}
	return r
}

// Repair handles orphans first, then missing links, then status mismatches.
// A storage error stops the run and returns the partial report.
func (r *Reconciler) Repair(ctx context.Context, violations []domain.Violation) (*domain.RepairReport, error) {
	ordered := slices.Clone(violations)
	slices.SortStableFunc(ordered, func(a, b domain.Violation) int {
		return repairPhase(a.Kind) - repairPhase(b.Kind)
	})

	report := &domain.RepairReport{Items: make([]domain.RepairItem, 0, len(ordered))}
	for _, v := range ordered {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		fn, ok := r.repairs[v.Kind]
		if !ok {
			report.Add(unrecoverable(v, "no repair for violation kind"))
			metrics.Scheduler().IncRepair(string(v.Kind), string(domain.RepairUnrecoverable))
			continue
		}
		item, err := fn(ctx, v)
		if err != nil {
			return report, fmt.Errorf("repair %s %s: %w", v.Kind, v.EntityID, err)
		}
		report.Add(item)
		metrics.Scheduler().IncRepair(string(v.Kind), string(item.Outcome))
		if item.Outcome != domain.RepairNoop {
			r.log.Info("violation repaired",
				zap.String("kind", string(v.Kind)),
				zap.String("entity_id", v.EntityID.String()),
				zap.String("outcome", string(item.Outcome)),
				zap.String("detail", item.Detail),
			)
		}
	}
	return report, nil
}

// Orphans are only ever checked against their own stored booking id. A
// payment or enrollment is never moved onto a different booking.
func (r *Reconciler) repairOrphanedPayment(ctx context.Context, v domain.Violation) (domain.RepairItem, error) {
	payment, err := r.repo.FindPayment(ctx, r.db, v.EntityID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if payment == nil || payment.BookingID == nil {
		return noop(v, "payment is no longer linked to a missing booking"), nil
	}
	linked, err := r.repo.FindByID(ctx, r.db, *payment.BookingID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if linked != nil {
		return noop(v, "payment already linked"), nil
	}

	if err := r.repo.MarkPaymentUnrecoverable(ctx, r.db, payment.ID, r.clock.Now()); err != nil {
		return domain.RepairItem{}, err
	}
	return unrecoverable(v, "booking "+payment.BookingID.String()+" no longer exists"), nil
}

func (r *Reconciler) repairOrphanedEnrollment(ctx context.Context, v domain.Violation) (domain.RepairItem, error) {
	enrollment, err := r.repo.FindEnrollment(ctx, r.db, v.EntityID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if enrollment == nil || enrollment.BookingID == nil {
		return noop(v, "enrollment is no longer linked to a missing booking"), nil
	}
	linked, err := r.repo.FindByID(ctx, r.db, *enrollment.BookingID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if linked != nil {
		return noop(v, "enrollment already linked"), nil
	}

	if err := r.repo.MarkEnrollmentUnrecoverable(ctx, r.db, enrollment.ID, r.clock.Now()); err != nil {
		return domain.RepairItem{}, err
	}
	return unrecoverable(v, "booking "+enrollment.BookingID.String()+" no longer exists"), nil
}

func (r *Reconciler) repairMissingPayment(ctx context.Context, v domain.Violation) (domain.RepairItem, error) {
	booking, err := r.repo.FindByID(ctx, r.db, v.EntityID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if booking == nil {
		return noop(v, "booking no longer exists"), nil
	}
	existing, err := r.repo.FindPaymentByBooking(ctx, r.db, booking.ID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if existing != nil {
		return noop(v, "payment already linked"), nil
	}
	if booking.CheckoutSessionRef == nil {
		return unrecoverable(v, "booking has no checkout session to match a payment"), nil
	}

	payment, err := r.repo.FindUnlinkedPayment(ctx, r.db, *booking.CheckoutSessionRef)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if payment == nil {
		return unrecoverable(v, "no unlinked payment for session "+*booking.CheckoutSessionRef), nil
	}
	ok, err := r.repo.RelinkPayment(ctx, r.db, payment.ID, nil, booking.ID, r.clock.Now())
	if err != nil {
		return domain.RepairItem{}, err
	}
	if !ok {
		return noop(v, "payment was linked concurrently"), nil
	}
	return relinked(v, "linked payment "+payment.ID.String()), nil
}

func (r *Reconciler) repairMissingEnrollment(ctx context.Context, v domain.Violation) (domain.RepairItem, error) {
	booking, err := r.repo.FindByID(ctx, r.db, v.EntityID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if booking == nil {
		return noop(v, "booking no longer exists"), nil
	}
	existing, err := r.repo.FindEnrollmentByBooking(ctx, r.db, booking.ID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if existing != nil {
		return noop(v, "enrollment already linked"), nil
	}

	enrollment, err := r.repo.FindUnlinkedEnrollment(ctx, r.db, booking.CourseID, booking.StudentID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if enrollment == nil {
		return unrecoverable(v, "no unlinked enrollment for course and student"), nil
	}
	ok, err := r.repo.RelinkEnrollment(ctx, r.db, enrollment.ID, nil, booking.ID, r.clock.Now())
	if err != nil {
		return domain.RepairItem{}, err
	}
	if !ok {
		return noop(v, "enrollment was linked concurrently"), nil
	}
	return relinked(v, "linked enrollment "+enrollment.ID.String()), nil
}

// repairMismatchedStatus only ever resyncs from the gateway. A triple the
// gateway cannot settle is left as is and reported.
func (r *Reconciler) repairMismatchedStatus(ctx context.Context, v domain.Violation) (domain.RepairItem, error) {
	triple, err := r.repo.LoadTriple(ctx, r.db, v.EntityID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if triple == nil {
		return noop(v, "booking no longer exists"), nil
	}
	if consistent(triple) {
		return noop(v, "triple already consistent"), nil
	}
	if triple.Booking.CheckoutSessionRef == nil {
		return unrecoverable(v, "booking has no checkout session to resync"), nil
	}

	_, err = r.syncer.SyncStatus(ctx, *triple.Booking.CheckoutSessionRef)
	if err != nil {
		switch {
		case errors.Is(err, paymentdomain.ErrTransitionRejected):
			return unrecoverable(v, "gateway state conflicts with a terminal record"), nil
		case errs.Is(err, errs.ExternalGateway), errs.Is(err, errs.NotFound):
			return unrecoverable(v, "gateway status unavailable: "+err.Error()), nil
		default:
			return domain.RepairItem{}, err
		}
	}

	triple, err = r.repo.LoadTriple(ctx, r.db, v.EntityID)
	if err != nil {
		return domain.RepairItem{}, err
	}
	if triple == nil || !consistent(triple) {
		return unrecoverable(v, "still mismatched after gateway resync"), nil
	}
	return domain.RepairItem{Violation: v, Outcome: domain.RepairResynced, Detail: "resynced to " + string(triple.Booking.Status)}, nil
}

func repairPhase(kind domain.ViolationKind) int {
	switch kind {
	case domain.ViolationOrphanedPayment, domain.ViolationOrphanedEnrollment:
		return 0
	case domain.ViolationMissingPayment, domain.ViolationMissingEnrollment:
		return 1
	case domain.ViolationMismatchedStatus:
		return 2
	case domain.ViolationRejectedTransition:
		return 3
	default:
		panic(fmt.Sprintf("reconciliation: unknown violation kind %q", string(kind)))
	}
}

func consistent(t *bookingdomain.Triple) bool {
	if t.Payment == nil || t.Enrollment == nil {
		return false
	}
	return bookingdomain.AllowedTriple(t.Booking.Status, t.Payment.Status, t.Enrollment.PaymentStatus)
}

func noop(v domain.Violation, detail string) domain.RepairItem {
	return domain.RepairItem{Violation: v, Outcome: domain.RepairNoop, Detail: detail}
}

func relinked(v domain.Violation, detail string) domain.RepairItem {
	return domain.RepairItem{Violation: v, Outcome: domain.RepairRelinked, Detail: detail}
}

func unrecoverable(v domain.Violation, detail string) domain.RepairItem {
	return domain.RepairItem{Violation: v, Outcome: domain.RepairUnrecoverable, Detail: detail}
}
