package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBooking(ctx context.Context, db *gorm.DB, booking *Booking) error
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	InsertEnrollment(ctx context.Context, db *gorm.DB, enrollment *Enrollment) error

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	FindBySessionRefForUpdate(ctx context.Context, db *gorm.DB, sessionRef string) (*Booking, error)
	FindPaymentByBooking(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*Payment, error)
	FindEnrollmentByBooking(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*Enrollment, error)
	LoadTriple(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Triple, error)

	UpdateBooking(ctx context.Context, db *gorm.DB, booking *Booking) error
	UpdatePayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	UpdateEnrollment(ctx context.Context, db *gorm.DB, enrollment *Enrollment) error

	// DeleteStale removes bookings that never completed and were created
	// before cutoff. Linked payments and enrollments are left in place.
	DeleteStale(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)

	FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindEnrollment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Enrollment, error)
	FindBySessionRef(ctx context.Context, db *gorm.DB, sessionRef string) (*Booking, error)
	FindUnlinkedPayment(ctx context.Context, db *gorm.DB, sessionRef string) (*Payment, error)
	FindUnlinkedEnrollment(ctx context.Context, db *gorm.DB, courseID, studentID snowflake.ID) (*Enrollment, error)
	// RelinkPayment moves payment id from booking `from` (nil for unlinked)
	// to booking `to`. It reports false when the row no longer matches from.
	RelinkPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, from *snowflake.ID, to snowflake.ID, at time.Time) (bool, error)
	RelinkEnrollment(ctx context.Context, db *gorm.DB, id snowflake.ID, from *snowflake.ID, to snowflake.ID, at time.Time) (bool, error)
	MarkPaymentUnrecoverable(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	MarkEnrollmentUnrecoverable(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
