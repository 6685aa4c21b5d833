package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation              = errors.New("payroll validation failed")
	ErrInvalidPeriod           = errors.New("invalid payroll period")
	ErrInvalidRecord           = errors.New("invalid attendance record")
	ErrDuplicateRecord         = errors.New("duplicate attendance record for the same date")
	ErrBelowMinimumWage        = errors.New("hourly rate below statutory minimum wage")
	ErrDataUnavailable         = errors.New("no attendance data for the period")
	ErrConfiguration           = errors.New("payroll configuration error")
	ErrNoActiveRuleSet         = errors.New("no labor law rule set active for the date")
	ErrInvalidRuleSet          = errors.New("invalid labor law rule set")
	ErrCalculation             = errors.New("payroll calculation failed")
	ErrStaffNotFound           = errors.New("staff member not found")
	ErrSalaryRecordNotFound    = errors.New("salary record not found")
	ErrRecordLocked            = errors.New("salary record already confirmed, cannot recalculate")
	ErrInvalidStatusTransition = errors.New("invalid salary status transition")
)

// InvalidRecordError reports an attendance record the aggregator cannot use.
type InvalidRecordError struct {
	StaffID string
	Date    string
	Reason  string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid attendance record for staff %s on %s: %s", e.StaffID, e.Date, e.Reason)
}

func (e *InvalidRecordError) Unwrap() []error {
	return []error{ErrInvalidRecord, ErrValidation}
}

// DuplicateRecordError reports two attendance records for one work date.
type DuplicateRecordError struct {
	StaffID string
	Date    string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("duplicate attendance records for staff %s on %s", e.StaffID, e.Date)
}

func (e *DuplicateRecordError) Unwrap() []error {
	return []error{ErrDuplicateRecord, ErrValidation}
}

// MinimumWageError is returned before any pay component is computed.
type MinimumWageError struct {
	HourlyRate  decimal.Decimal
	MinimumWage decimal.Decimal
	RuleSet     string
}

func (e *MinimumWageError) Error() string {
	return fmt.Sprintf("hourly rate %s is below minimum wage %s (rule set %s)",
		e.HourlyRate.String(), e.MinimumWage.String(), e.RuleSet)
}

func (e *MinimumWageError) Unwrap() []error {
	return []error{ErrBelowMinimumWage, ErrValidation}
}

// DataUnavailableError is only raised when the caller requires attendance data.
type DataUnavailableError struct {
	StaffID string
	Year    int
	Month   int
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no attendance records for staff %s in %04d-%02d", e.StaffID, e.Year, e.Month)
}

func (e *DataUnavailableError) Unwrap() error {
	return ErrDataUnavailable
}

// ConfigurationError means the system cannot calculate the period at all.
// A batch aborts on it.
type ConfigurationError struct {
	Date time.Time
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payroll configuration error for %s", e.Date.Format("2006-01-02"))
	}
	return fmt.Sprintf("payroll configuration error for %s: %v", e.Date.Format("2006-01-02"), e.Err)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// CalculationError wraps unexpected faults inside one staff member's calculation.
type CalculationError struct {
	StaffID string
	Err     error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation failed for staff %s: %v", e.StaffID, e.Err)
}

func (e *CalculationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCalculation}
	}
	return []error{ErrCalculation, e.Err}
}

// IsValidation returns true if the error is due to bad caller input or bad attendance data.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsBatchFatal returns true if a batch must stop instead of isolating the error.
func IsBatchFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
