package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	"github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type mismatchRow struct {
	BookingID        snowflake.ID
	BookingStatus    string
	PaymentStatus    string
	EnrollmentStatus string
}

type orphanRow struct {
	ID          snowflake.ID
	BookingID   snowflake.ID
	RepairState string
}

type missingRow struct {
	BookingID     snowflake.ID
	BookingStatus string
}

type check func(ctx context.Context, db *gorm.DB, limit int) ([]domain.Violation, error)

// Auditor finds booking triples that break the allowed-triple table or lost
// a link. It only reads.
type Auditor struct {
	db     *gorm.DB
	checks []check
}

func NewAuditor(db *gorm.DB) *Auditor {
	return &Auditor{
		db: db,
		checks: []check{
			mismatchedStatus,
			orphaned("payments", domain.ViolationOrphanedPayment),
			orphaned("enrollments", domain.ViolationOrphanedEnrollment),
			missing("payments", domain.ViolationMissingPayment),
			missing("enrollments", domain.ViolationMissingEnrollment),
		},
	}
}

// Scan runs every check concurrently, each bounded by limit rows, and
// returns the violations ordered by kind then entity id.
func (a *Auditor) Scan(ctx context.Context, limit int) ([]domain.Violation, error) {
	if limit <= 0 {
		limit = 1000
	}
	var (
		mu  sync.Mutex
		out []domain.Violation
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range a.checks {
		g.Go(func() error {
			found, err := c(gctx, a.db, limit)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	SortViolations(out)
	return out, nil
}

func SortViolations(v []domain.Violation) {
	sort.Slice(v, func(i, j int) bool {
		if v[i].Kind != v[j].Kind {
			return v[i].Kind < v[j].Kind
		}
		return v[i].EntityID < v[j].EntityID
	})
}

func mismatchedStatus(ctx context.Context, db *gorm.DB, limit int) ([]domain.Violation, error) {
	var rows []mismatchRow
	err := db.WithContext(ctx).Raw(
		`SELECT b.id AS booking_id, b.status AS booking_status,
			p.status AS payment_status, e.payment_status AS enrollment_status
		 FROM bookings b
		 JOIN payments p ON p.booking_id = b.id
		 JOIN enrollments e ON e.booking_id = b.id
		 WHERE NOT (
			(b.status IN ? AND p.status = ? AND e.payment_status = ?)
			OR (b.status = ? AND p.status = ? AND e.payment_status = ?)
			OR (b.status IN ? AND p.status = ? AND e.payment_status = ?)
		 )
		 ORDER BY b.id ASC
		 LIMIT ?`,
		[]bookingdomain.BookingStatus{bookingdomain.BookingStatusPending, bookingdomain.BookingStatusPaymentInitiated},
		bookingdomain.PaymentStatusPending, bookingdomain.EnrollmentStatusPending,
		bookingdomain.BookingStatusCompleted,
		bookingdomain.PaymentStatusCompleted, bookingdomain.EnrollmentStatusPaid,
		[]bookingdomain.BookingStatus{bookingdomain.BookingStatusFailed, bookingdomain.BookingStatusCancelled},
		bookingdomain.PaymentStatusFailed, bookingdomain.EnrollmentStatusFailed,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scan mismatched status: %w", err)
	}

	seen := make(map[snowflake.ID]struct{}, len(rows))
	out := make([]domain.Violation, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.BookingID]; ok {
			continue
		}
		seen[row.BookingID] = struct{}{}
		bookingID := row.BookingID
		out = append(out, domain.Violation{
			Kind:       domain.ViolationMismatchedStatus,
			EntityType: domain.EntityBooking,
			EntityID:   row.BookingID,
			BookingID:  &bookingID,
			Detail:     fmt.Sprintf("booking %s, payment %s, enrollment %s", row.BookingStatus, row.PaymentStatus, row.EnrollmentStatus),
		})
	}
	return out, nil
}

func orphaned(table string, kind domain.ViolationKind) check {
	query := fmt.Sprintf(
		`SELECT o.id AS id, o.booking_id AS booking_id, o.repair_state AS repair_state
		 FROM %s o
		 LEFT JOIN bookings b ON b.id = o.booking_id
		 WHERE o.booking_id IS NOT NULL AND b.id IS NULL
		 ORDER BY o.id ASC
		 LIMIT ?`, table)

	return func(ctx context.Context, db *gorm.DB, limit int) ([]domain.Violation, error) {
		var rows []orphanRow
		if err := db.WithContext(ctx).Raw(query, limit).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out := make([]domain.Violation, 0, len(rows))
		for _, row := range rows {
			bookingID := row.BookingID
			out = append(out, domain.Violation{
				Kind:          kind,
				EntityType:    domain.EntityFor(kind),
				EntityID:      row.ID,
				BookingID:     &bookingID,
				Detail:        fmt.Sprintf("references missing booking %s", row.BookingID),
				Unrecoverable: bookingdomain.RepairState(row.RepairState) == bookingdomain.RepairStateUnrecoverable,
			})
		}
		return out, nil
	}
}

func missing(table string, kind domain.ViolationKind) check {
	query := fmt.Sprintf(
		`SELECT b.id AS booking_id, b.status AS booking_status
		 FROM bookings b
		 WHERE b.status <> ?
		   AND NOT EXISTS (SELECT 1 FROM %s l WHERE l.booking_id = b.id)
		 ORDER BY b.id ASC
		 LIMIT ?`, table)

	return func(ctx context.Context, db *gorm.DB, limit int) ([]domain.Violation, error) {
		var rows []missingRow
		if err := db.WithContext(ctx).Raw(query, bookingdomain.BookingStatusPending, limit).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out := make([]domain.Violation, 0, len(rows))
		for _, row := range rows {
			bookingID := row.BookingID
			out = append(out, domain.Violation{
				Kind:       kind,
				EntityType: domain.EntityBooking,
				EntityID:   row.BookingID,
				BookingID:  &bookingID,
				Detail:     fmt.Sprintf("booking %s has no linked row in %s", row.BookingStatus, table),
			})
		}
		return out, nil
	}
}
