package payroll

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
)

// ValidatePeriod checks the year/month pair of a pay period.
func ValidatePeriod(year, month int) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if !validator.IsInRange(year, 1000, 9999) {
		errs = append(errs, validator.ValidationError{Field: "year", Message: "must be a 4-digit year"})
	}
	if !validator.IsInRange(month, 1, 12) {
		errs = append(errs, validator.ValidationError{Field: "month", Message: "must be between 1 and 12"})
	}

	return errs
}

// ValidationFailure tags validator errors with ErrValidation so both
// errors.As(validator.ValidationErrors) and errors.Is(ErrValidation) match.
func ValidationFailure(errs validator.ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errs)
}

// ========== CALCULATION DTOs ==========

type CalculateRequest struct {
	StaffID string `json:"staff_id"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
}

func (r *CalculateRequest) Validate() error {
	errs := ValidatePeriod(r.Year, r.Month)

	if validator.IsEmpty(r.StaffID) {
		errs = append(errs, validator.ValidationError{Field: "staff_id", Message: "is required"})
	}

	return ValidationFailure(errs)
}

type BatchCalculateRequest struct {
	StaffIDs []string `json:"staff_ids,omitempty"` // Empty = every staff member of the caller's company
	Year     int      `json:"year"`
	Month    int      `json:"month"`
}

func (r *BatchCalculateRequest) Validate() error {
	errs := ValidatePeriod(r.Year, r.Month)

	for i, id := range r.StaffIDs {
		if validator.IsEmpty(id) {
			errs = append(errs, validator.ValidationError{Field: fmt.Sprintf("staff_ids[%d]", i), Message: "must not be empty"})
		}
	}

	return ValidationFailure(errs)
}

type BatchFailureResponse struct {
	StaffID string `json:"staff_id"`
	Reason  string `json:"reason"`
}

type BatchResultResponse struct {
	RunID          string                 `json:"run_id"`
	Year           int                    `json:"year"`
	Month          int                    `json:"month"`
	SucceededCount int                    `json:"succeeded_count"`
	FailedCount    int                    `json:"failed_count"`
	Failures       []BatchFailureResponse `json:"failures"`
	Records        []SalaryRecord         `json:"records"`
	Incomplete     bool                   `json:"incomplete,omitempty"`
}

func NewBatchResultResponse(result BatchResult, incomplete bool) BatchResultResponse {
	failures := make([]BatchFailureResponse, 0, len(result.Failed))
	for _, f := range result.Failed {
		failures = append(failures, BatchFailureResponse{StaffID: f.StaffID, Reason: f.Reason})
	}
	records := result.Succeeded
	if records == nil {
		records = []SalaryRecord{}
	}

	return BatchResultResponse{
		RunID:          result.RunID,
		Year:           result.Year,
		Month:          result.Month,
		SucceededCount: result.SucceededCount(),
		FailedCount:    result.FailedCount(),
		Failures:       failures,
		Records:        records,
		Incomplete:     incomplete,
	}
}

// ========== STATUS DTOs ==========

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateStatusRequest) Validate() error {
	var errs validator.ValidationErrors

	if !SalaryStatus(strings.ToUpper(r.Status)).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be one of DRAFT, CONFIRMED, PAID"})
	}

	return ValidationFailure(errs)
}

func (r *UpdateStatusRequest) Target() SalaryStatus {
	return SalaryStatus(strings.ToUpper(r.Status))
}

// ========== RULE SET DTOs ==========

type TaxBracketResponse struct {
	Over string `json:"over"`
	Rate string `json:"rate"`
}

type RuleSetResponse struct {
	Version                 string               `json:"version"`
	EffectiveDate           string               `json:"effective_date"`
	MinimumWage             string               `json:"minimum_wage"`
	OvertimeMultiplier      string               `json:"overtime_multiplier"`
	NightMultiplier         string               `json:"night_multiplier"`
	HolidayMultiplier       string               `json:"holiday_multiplier"`
	NightWindow             string               `json:"night_window"`
	NightDailyCapHours      string               `json:"night_daily_cap_hours"`
	WeeklyHolidayThreshold  string               `json:"weekly_holiday_threshold_hours"`
	PensionRate             string               `json:"pension_rate"`
	PensionIncomeFloor      string               `json:"pension_income_floor"`
	PensionIncomeCeiling    string               `json:"pension_income_ceiling"`
	HealthInsuranceRate     string               `json:"health_insurance_rate"`
	LongTermCareRate        string               `json:"long_term_care_rate"`
	EmploymentInsuranceRate string               `json:"employment_insurance_rate"`
	LocalIncomeTaxRate      string               `json:"local_income_tax_rate"`
	IncomeTaxBrackets       []TaxBracketResponse `json:"income_tax_brackets"`
}

func NewRuleSetResponse(r LaborLawRuleSet) RuleSetResponse {
	brackets := make([]TaxBracketResponse, 0, len(r.IncomeTaxBrackets))
	for _, b := range r.IncomeTaxBrackets {
		brackets = append(brackets, TaxBracketResponse{Over: b.Over.String(), Rate: b.Rate.String()})
	}

	return RuleSetResponse{
		Version:                 r.Version,
		EffectiveDate:           r.EffectiveDate.Format("2006-01-02"),
		MinimumWage:             r.MinimumWage.String(),
		OvertimeMultiplier:      r.OvertimeMultiplier.String(),
		NightMultiplier:         r.NightMultiplier.String(),
		HolidayMultiplier:       r.HolidayMultiplier.String(),
		NightWindow:             fmt.Sprintf("%02d:00-%02d:00", r.NightStartHour, r.NightEndHour),
		NightDailyCapHours:      DurationHours(r.NightDailyCap).String(),
		WeeklyHolidayThreshold:  DurationHours(r.WeeklyHolidayThreshold).String(),
		PensionRate:             r.PensionRate.String(),
		PensionIncomeFloor:      r.PensionIncomeFloor.String(),
		PensionIncomeCeiling:    r.PensionIncomeCeiling.String(),
		HealthInsuranceRate:     r.HealthInsuranceRate.String(),
		LongTermCareRate:        r.LongTermCareRate.String(),
		EmploymentInsuranceRate: r.EmploymentInsuranceRate.String(),
		LocalIncomeTaxRate:      r.LocalIncomeTaxRate.String(),
		IncomeTaxBrackets:       brackets,
	}
}
