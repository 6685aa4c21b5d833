package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, jwt.ErrPayrollAccess):
		Forbidden(w, err.Error())
	case errors.Is(err, jwt.ErrMissingCompanyID):
		Forbidden(w, "Token is not bound to a company")

	// Calculation input errors
	case errors.Is(err, payroll.ErrBelowMinimumWage):
		UnprocessableEntity(w, "BELOW_MINIMUM_WAGE", err.Error())
	case errors.Is(err, payroll.ErrInvalidRecord), errors.Is(err, payroll.ErrDuplicateRecord):
		UnprocessableEntity(w, "INVALID_ATTENDANCE", err.Error())
	case errors.Is(err, payroll.ErrValidation):
		UnprocessableEntity(w, "VALIDATION_ERROR", err.Error())

	// Lookup errors
	case errors.Is(err, payroll.ErrStaffNotFound):
		NotFound(w, "Staff member not found")
	case errors.Is(err, payroll.ErrSalaryRecordNotFound):
		NotFound(w, "Salary record not found")
	case errors.Is(err, payroll.ErrDataUnavailable):
		NotFound(w, err.Error())

	// Ledger state errors
	case errors.Is(err, payroll.ErrRecordLocked):
		Conflict(w, "Salary record already confirmed")
	case errors.Is(err, payroll.ErrInvalidStatusTransition):
		Conflict(w, err.Error())

	// System errors
	case errors.Is(err, payroll.ErrConfiguration):
		ServiceUnavailable(w, "CONFIGURATION_ERROR", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		ServiceUnavailable(w, "TIMEOUT", "Request timed out")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
