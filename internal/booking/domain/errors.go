package domain

import "github.com/smallbiznis/lingohub/internal/errs"

var (
	ErrInvalidBookingID = errs.New(errs.Validation, "invalid_booking_id")
	ErrInvalidCourseID  = errs.New(errs.Validation, "invalid_course_id")
	ErrInvalidStudentID = errs.New(errs.Validation, "invalid_student_id")
	ErrInvalidCutoff    = errs.New(errs.Validation, "invalid_cleanup_cutoff")
	ErrInvalidPrice     = errs.New(errs.Validation, "invalid_course_price")
	ErrBookingNotFound  = errs.New(errs.NotFound, "booking_not_found")
	ErrCheckoutFailed   = errs.New(errs.ExternalGateway, "checkout_failed")
)

var ErrCurrencyMismatch = errs.New(errs.Validation, "course_currency_mismatch")
