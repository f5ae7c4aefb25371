package domain

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/commission"
)

type CreateRequest struct {
	CourseID  string `json:"course_id" validate:"required,numeric"`
	StudentID string `json:"student_id" validate:"required,numeric"`
}

// CreateResult is returned for every booking attempt, including one whose
// checkout could not be opened.
type CreateResult struct {
	BookingID          string                `json:"booking_id"`
	Status             BookingStatus         `json:"status"`
	Amount             decimal.Decimal       `json:"amount"`
	CommissionRate     decimal.Decimal       `json:"commission_rate"`
	Commission         decimal.Decimal       `json:"commission"`
	TotalCharge        decimal.Decimal       `json:"total_charge"`
	Currency           string                `json:"currency"`
	RateSource         commission.RateSource `json:"rate_source"`
	CheckoutSessionRef string                `json:"checkout_session_ref,omitempty"`
	CheckoutURL        string                `json:"checkout_url,omitempty"`
}
