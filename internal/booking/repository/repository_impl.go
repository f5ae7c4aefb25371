package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lingohub/internal/booking/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBooking(ctx context.Context, db *gorm.DB, booking *domain.Booking) error {
	return db.WithContext(ctx).Create(booking).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) InsertEnrollment(ctx context.Context, db *gorm.DB, enrollment *domain.Enrollment) error {
	return db.WithContext(ctx).Create(enrollment).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	return take[domain.Booking](db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	return take[domain.Booking](db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindBySessionRefForUpdate(ctx context.Context, db *gorm.DB, sessionRef string) (*domain.Booking, error) {
	return take[domain.Booking](db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("checkout_session_ref = ?", sessionRef))
}

func (r *repo) FindBySessionRef(ctx context.Context, db *gorm.DB, sessionRef string) (*domain.Booking, error) {
	return take[domain.Booking](db.WithContext(ctx).Where("checkout_session_ref = ?", sessionRef))
}

func (r *repo) FindPaymentByBooking(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*domain.Payment, error) {
	return take[domain.Payment](db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id ASC"))
}

func (r *repo) FindEnrollmentByBooking(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*domain.Enrollment, error) {
	return take[domain.Enrollment](db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id ASC"))
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return take[domain.Payment](db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindEnrollment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Enrollment, error) {
	return take[domain.Enrollment](db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) LoadTriple(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Triple, error) {
	booking, err := r.FindByID(ctx, db, id)
	if err != nil || booking == nil {
		return nil, err
	}
	payment, err := r.FindPaymentByBooking(ctx, db, id)
	if err != nil {
		return nil, err
	}
	enrollment, err := r.FindEnrollmentByBooking(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return &domain.Triple{Booking: *booking, Payment: payment, Enrollment: enrollment}, nil
}

// UpdateBooking writes the only mutable booking columns. Frozen pricing is
// never part of the statement.
func (r *repo) UpdateBooking(ctx context.Context, db *gorm.DB, booking *domain.Booking) error {
	return db.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET status = ?, checkout_session_ref = ?, updated_at = ?
		 WHERE id = ?`,
		booking.Status,
		booking.CheckoutSessionRef,
		booking.UpdatedAt,
		booking.ID,
	).Error
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, gateway_session_ref = ?, gateway_transaction_id = ?, updated_at = ?
		 WHERE id = ?`,
		payment.Status,
		payment.GatewaySessionRef,
		payment.GatewayTransactionID,
		payment.UpdatedAt,
		payment.ID,
	).Error
}

func (r *repo) UpdateEnrollment(ctx context.Context, db *gorm.DB, enrollment *domain.Enrollment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE enrollments
		 SET payment_status = ?, updated_at = ?
		 WHERE id = ?`,
		enrollment.PaymentStatus,
		enrollment.UpdatedAt,
		enrollment.ID,
	).Error
}

func (r *repo) DeleteStale(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM bookings
		 WHERE status <> ? AND created_at < ?`,
		domain.BookingStatusCompleted,
		cutoff,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) FindUnlinkedPayment(ctx context.Context, db *gorm.DB, sessionRef string) (*domain.Payment, error) {
	return take[domain.Payment](db.WithContext(ctx).
		Where("booking_id IS NULL AND gateway_session_ref = ?", sessionRef).
		Order("id ASC"))
}

func (r *repo) FindUnlinkedEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID snowflake.ID) (*domain.Enrollment, error) {
	return take[domain.Enrollment](db.WithContext(ctx).
		Where("booking_id IS NULL AND course_id = ? AND student_id = ?", courseID, studentID).
		Order("id ASC"))
}

func (r *repo) RelinkPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, from *snowflake.ID, to snowflake.ID, at time.Time) (bool, error) {
	return relink(ctx, db, "payments", id, from, to, at)
}

func (r *repo) RelinkEnrollment(ctx context.Context, db *gorm.DB, id snowflake.ID, from *snowflake.ID, to snowflake.ID, at time.Time) (bool, error) {
	return relink(ctx, db, "enrollments", id, from, to, at)
}

func (r *repo) MarkPaymentUnrecoverable(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return markUnrecoverable(ctx, db, "payments", id, at)
}

func (r *repo) MarkEnrollmentUnrecoverable(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return markUnrecoverable(ctx, db, "enrollments", id, at)
}

func relink(ctx context.Context, db *gorm.DB, table string, id snowflake.ID, from *snowflake.ID, to snowflake.ID, at time.Time) (bool, error) {
	stmt := db.WithContext(ctx).Table(table).Where("id = ?", id)
	if from == nil {
		stmt = stmt.Where("booking_id IS NULL")
	} else {
		stmt = stmt.Where("booking_id = ?", *from)
	}
	res := stmt.Updates(map[string]any{"booking_id": to, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func markUnrecoverable(ctx context.Context, db *gorm.DB, table string, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Table(table).
		Where("id = ? AND repair_state <> ?", id, domain.RepairStateUnrecoverable).
		Updates(map[string]any{"repair_state": domain.RepairStateUnrecoverable, "updated_at": at}).Error
}

func take[T any](stmt *gorm.DB) (*T, error) {
	var item T
	if err := stmt.Take(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
