package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	"gorm.io/datatypes"
)

// EventKind is a normalized gateway event. Every provider event is mapped
// onto one of these before it reaches the state machine.
type EventKind string

const (
	EventCheckoutCreated  EventKind = "CHECKOUT_CREATED"
	EventPaymentSucceeded EventKind = "PAYMENT_SUCCEEDED"
	EventPaymentFailed    EventKind = "PAYMENT_FAILED"
	EventCheckoutExpired  EventKind = "CHECKOUT_EXPIRED"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCheckoutCreated, EventPaymentSucceeded, EventPaymentFailed, EventCheckoutExpired:
		return true
	default:
		return false
	}
}

// Target is the triple an event drives a booking to.
type Target struct {
	Booking    bookingdomain.BookingStatus
	Payment    bookingdomain.PaymentStatus
	Enrollment bookingdomain.EnrollmentStatus
}

func TargetFor(kind EventKind) Target {
	switch kind {
	case EventCheckoutCreated:
		return Target{bookingdomain.BookingStatusPaymentInitiated, bookingdomain.PaymentStatusPending, bookingdomain.EnrollmentStatusPending}
	case EventPaymentSucceeded:
		return Target{bookingdomain.BookingStatusCompleted, bookingdomain.PaymentStatusCompleted, bookingdomain.EnrollmentStatusPaid}
	case EventPaymentFailed:
		return Target{bookingdomain.BookingStatusFailed, bookingdomain.PaymentStatusFailed, bookingdomain.EnrollmentStatusFailed}
	case EventCheckoutExpired:
		return Target{bookingdomain.BookingStatusCancelled, bookingdomain.PaymentStatusFailed, bookingdomain.EnrollmentStatusFailed}
	default:
		panic(fmt.Sprintf("payment: unknown event kind %q", string(kind)))
	}
}

// EventSource says which path delivered an event.
type EventSource string

const (
	SourceCheckout EventSource = "checkout"
	SourceWebhook  EventSource = "webhook"
	SourcePoll     EventSource = "poll"
)

// Event addresses a booking either by ID or by its checkout session ref.
type Event struct {
	BookingID     snowflake.ID
	SessionRef    string
	Kind          EventKind
	TransactionID string
	Source        EventSource
}

// Outcome reports what Apply did. Applied is false on the idempotent path.
type Outcome struct {
	Applied bool                 `json:"applied"`
	Event   EventKind            `json:"event"`
	Triple  bookingdomain.Triple `json:"triple"`
}

// GatewayEvent is a verified, parsed webhook delivery.
type GatewayEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	Kind            EventKind
	SessionRef      string
	BookingID       string
	TransactionID   string
	Payload         []byte
}

// PaymentEvent is the webhook dedupe log. The provider event ID is unique
// per provider.
type PaymentEvent struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	SessionRef      string         `json:"session_ref" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
}

func (PaymentEvent) TableName() string { return "payment_events" }

func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
