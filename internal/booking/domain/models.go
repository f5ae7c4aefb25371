// Package domain holds the booking triple: a Booking and the Payment and
// Enrollment opened for it.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/commission"
)

type BookingStatus string

const (
	BookingStatusPending          BookingStatus = "PENDING"
	BookingStatusPaymentInitiated BookingStatus = "PAYMENT_INITIATED"
	BookingStatusCompleted        BookingStatus = "COMPLETED"
	BookingStatusCancelled        BookingStatus = "CANCELLED"
	BookingStatusFailed           BookingStatus = "FAILED"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusPaymentInitiated, BookingStatusCompleted, BookingStatusCancelled, BookingStatusFailed:
		return true
	default:
		return false
	}
}

const terminalRank = 2

// Rank orders statuses along the forward-only path. Terminal statuses share
// the highest rank. An unrecognised stored value ranks as terminal so that
// nothing moves it; the auditor reports it as a mismatched triple.
func (s BookingStatus) Rank() int {
	switch s {
	case BookingStatusPending:
		return 0
	case BookingStatusPaymentInitiated:
		return 1
	default:
		return terminalRank
	}
}

func (s BookingStatus) Terminal() bool { return s.Rank() == terminalRank }

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal is true for every status except PENDING, unrecognised ones
// included.
func (s PaymentStatus) Terminal() bool { return s != PaymentStatusPending }

type EnrollmentStatus string

const (
	EnrollmentStatusPending EnrollmentStatus = "PENDING"
	EnrollmentStatusPaid    EnrollmentStatus = "PAID"
	EnrollmentStatusFailed  EnrollmentStatus = "FAILED"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusPaid, EnrollmentStatusFailed:
		return true
	default:
		return false
	}
}

func (s EnrollmentStatus) Terminal() bool { return s != EnrollmentStatusPending }

// RepairState flags a record the reconciler gave up on. It is not a status.
type RepairState string

const (
	RepairStateNone          RepairState = ""
	RepairStateUnrecoverable RepairState = "UNRECOVERABLE"
)

// Booking freezes its price, rate and commission at creation. Only Status and
// CheckoutSessionRef change afterwards.
type Booking struct {
	ID                 snowflake.ID          `json:"id" gorm:"primaryKey"`
	CourseID           snowflake.ID          `json:"course_id" gorm:"not null;index"`
	StudentID          snowflake.ID          `json:"student_id" gorm:"not null;index"`
	Status             BookingStatus         `json:"status" gorm:"type:text;not null;index"`
	Amount             decimal.Decimal       `json:"amount" gorm:"type:numeric(12,2);not null"`
	CommissionRate     decimal.Decimal       `json:"commission_rate" gorm:"type:numeric(5,2);not null"`
	CommissionAmount   decimal.Decimal       `json:"commission_amount" gorm:"type:numeric(12,2);not null"`
	TotalCharge        decimal.Decimal       `json:"total_charge" gorm:"type:numeric(12,2);not null"`
	Currency           string                `json:"currency" gorm:"type:text;not null"`
	RateSource         commission.RateSource `json:"rate_source" gorm:"type:text;not null"`
	CheckoutSessionRef *string               `json:"checkout_session_ref,omitempty" gorm:"type:text;index"`
	IdempotencyKey     string                `json:"idempotency_key" gorm:"type:text;not null;uniqueIndex"`
	CreatedAt          time.Time             `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time             `json:"updated_at" gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

type Payment struct {
	ID                   snowflake.ID    `json:"id" gorm:"primaryKey"`
	BookingID            *snowflake.ID   `json:"booking_id,omitempty" gorm:"index"`
	Status               PaymentStatus   `json:"status" gorm:"type:text;not null"`
	GatewaySessionRef    *string         `json:"gateway_session_ref,omitempty" gorm:"type:text;index"`
	GatewayTransactionID *string         `json:"gateway_transaction_id,omitempty" gorm:"type:text"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	CommissionAmount     decimal.Decimal `json:"commission_amount" gorm:"type:numeric(12,2);not null"`
	RepairState          RepairState     `json:"repair_state,omitempty" gorm:"type:text;not null;default:''"`
	CreatedAt            time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time       `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

type Enrollment struct {
	ID            snowflake.ID     `json:"id" gorm:"primaryKey"`
	BookingID     *snowflake.ID    `json:"booking_id,omitempty" gorm:"index"`
	CourseID      snowflake.ID     `json:"course_id" gorm:"not null"`
	StudentID     snowflake.ID     `json:"student_id" gorm:"not null"`
	PaymentStatus EnrollmentStatus `json:"payment_status" gorm:"type:text;not null"`
	RepairState   RepairState      `json:"repair_state,omitempty" gorm:"type:text;not null;default:''"`
	CreatedAt     time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time        `json:"updated_at" gorm:"not null"`
}

func (Enrollment) TableName() string { return "enrollments" }

// Triple is the joined view of a booking and the records linked to it. A nil
// Payment or Enrollment means no linked row exists.
type Triple struct {
	Booking    Booking     `json:"booking"`
	Payment    *Payment    `json:"payment,omitempty"`
	Enrollment *Enrollment `json:"enrollment,omitempty"`
}

// AllowedTriple reports whether the three statuses may coexist.
func AllowedTriple(b BookingStatus, p PaymentStatus, e EnrollmentStatus) bool {
	switch b {
	case BookingStatusPending, BookingStatusPaymentInitiated:
		return p == PaymentStatusPending && e == EnrollmentStatusPending
	case BookingStatusCompleted:
		return p == PaymentStatusCompleted && e == EnrollmentStatusPaid
	case BookingStatusFailed, BookingStatusCancelled:
		return p == PaymentStatusFailed && e == EnrollmentStatusFailed
	default:
		return false
	}
}
