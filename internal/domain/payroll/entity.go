package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalaryStatus enum. Transitions are forward only: DRAFT -> CONFIRMED -> PAID.
type SalaryStatus string

const (
	SalaryStatusDraft     SalaryStatus = "DRAFT"
	SalaryStatusConfirmed SalaryStatus = "CONFIRMED"
	SalaryStatusPaid      SalaryStatus = "PAID"
)

func (s SalaryStatus) IsValid() bool {
	switch s {
	case SalaryStatusDraft, SalaryStatusConfirmed, SalaryStatusPaid:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is the single allowed successor of s.
func (s SalaryStatus) CanTransitionTo(next SalaryStatus) bool {
	switch s {
	case SalaryStatusDraft:
		return next == SalaryStatusConfirmed
	case SalaryStatusConfirmed:
		return next == SalaryStatusPaid
	}
	return false
}

// WeeklyHours is the worked time inside one week of the pay period.
type WeeklyHours struct {
	WeekStart time.Time
	Worked    time.Duration
	Eligible  bool
}

// WorkHoursSummary - aggregate of one staff member's month of attendance
type WorkHoursSummary struct {
	WorkDays int
	Regular  time.Duration
	Overtime time.Duration
	Night    time.Duration
	Holiday  time.Duration
	Total    time.Duration
	Weeks    []WeeklyHours

	// Dates (YYYY-MM-DD) with a check-in but no check-out.
	IncompleteDays []string
}

// Allowances are pass-through amounts supplied by the caller, in won.
type Allowances struct {
	Meal      int64 `json:"meal_allowance"`
	Transport int64 `json:"transport_allowance"`
	Position  int64 `json:"position_allowance"`
	Other     int64 `json:"other_allowances"`
}

func (a Allowances) Total() int64 {
	return a.Meal + a.Transport + a.Position + a.Other
}

func (a Allowances) IsNegative() bool {
	return a.Meal < 0 || a.Transport < 0 || a.Position < 0 || a.Other < 0
}

// WageComponents - gross pay broken down by component, in won
type WageComponents struct {
	BasePay          int64 `json:"base_salary"`
	OvertimePay      int64 `json:"overtime_pay"`
	NightPay         int64 `json:"night_pay"`
	HolidayPay       int64 `json:"holiday_pay"`
	WeeklyHolidayPay int64 `json:"weekly_holiday_pay"`
	Allowances
}

// TotalGross is the sum of every computed component and every allowance.
func (w WageComponents) TotalGross() int64 {
	return w.BasePay + w.OvertimePay + w.NightPay + w.HolidayPay + w.WeeklyHolidayPay + w.Allowances.Total()
}

// DeductionComponents - statutory and other withholdings, in won
type DeductionComponents struct {
	NationalPension     int64 `json:"national_pension"`
	HealthInsurance     int64 `json:"health_insurance"`
	LongTermCare        int64 `json:"long_term_care"`
	EmploymentInsurance int64 `json:"employment_insurance"`
	IncomeTax           int64 `json:"income_tax"`
	LocalIncomeTax      int64 `json:"local_income_tax"`
	OtherDeductions     int64 `json:"other_deductions"`
}

func (d DeductionComponents) Total() int64 {
	return d.NationalPension + d.HealthInsurance + d.LongTermCare + d.EmploymentInsurance +
		d.IncomeTax + d.LocalIncomeTax + d.OtherDeductions
}

// StaffProfile - pay terms for one staff member, owned by the staff directory
type StaffProfile struct {
	StaffID         string
	CompanyID       string
	HourlyRate      decimal.Decimal
	Allowances      Allowances
	OtherDeductions int64
}

// SalaryRecord - final artifact of one calculation, identity (staff_id, year, month)
type SalaryRecord struct {
	StaffID string `json:"staff_id"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`

	WageComponents
	TotalGrossPay int64 `json:"total_gross_pay"`

	DeductionComponents
	TotalDeductions int64 `json:"total_deductions"`

	NetPay     int64           `json:"net_pay"`
	WorkDays   int             `json:"work_days"`
	TotalHours decimal.Decimal `json:"total_hours"`
	Status     SalaryStatus    `json:"status"`

	RuleSetVersion string   `json:"rule_set_version"`
	Warnings       []string `json:"warnings,omitempty"`
}

// NewSalaryRecord assembles a DRAFT record. Totals and net pay are always
// recomputed from the components.
func NewSalaryRecord(staffID string, year, month int, summary WorkHoursSummary, wages WageComponents, deductions DeductionComponents, ruleSetVersion string) SalaryRecord {
	rec := SalaryRecord{
		StaffID:             staffID,
		Year:                year,
		Month:               month,
		WageComponents:      wages,
		DeductionComponents: deductions,
		WorkDays:            summary.WorkDays,
		TotalHours:          DurationHours(summary.Total).Round(2),
		Status:              SalaryStatusDraft,
		RuleSetVersion:      ruleSetVersion,
	}
	rec.Recompute()
	return rec
}

// Recompute derives the totals and net pay from the embedded components.
func (r *SalaryRecord) Recompute() {
	r.TotalGrossPay = r.WageComponents.TotalGross()
	r.TotalDeductions = r.DeductionComponents.Total()
	r.NetPay = r.TotalGrossPay - r.TotalDeductions
}

// DurationHours converts a duration to decimal hours without float rounding.
func DurationHours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(decimal.NewFromInt(3600))
}

// BatchFailure names one staff member the batch could not calculate.
type BatchFailure struct {
	StaffID string `json:"staff_id"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

// BatchResult is cumulative: successes are kept even when the batch stops early.
type BatchResult struct {
	RunID     string
	Year      int
	Month     int
	Succeeded []SalaryRecord
	Failed    []BatchFailure
}

func (b BatchResult) SucceededCount() int { return len(b.Succeeded) }
func (b BatchResult) FailedCount() int    { return len(b.Failed) }
