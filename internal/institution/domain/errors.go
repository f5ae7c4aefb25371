package domain

import "github.com/smallbiznis/lingohub/internal/errs"

var (
	ErrInvalidInstitutionID = errs.New(errs.Validation, "invalid_institution_id")
	ErrInvalidCourseID      = errs.New(errs.Validation, "invalid_course_id")
	ErrInstitutionNotFound  = errs.New(errs.NotFound, "institution_not_found")
	ErrCourseNotFound       = errs.New(errs.NotFound, "course_not_found")
)
