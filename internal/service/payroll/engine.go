package payroll

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
)

// Engine runs the pure part of a calculation: attendance in, salary record out.
// It performs no I/O and is safe for concurrent use.
type Engine struct {
	aggregator *Aggregator
}

func NewEngine(aggregator *Aggregator) *Engine {
	if aggregator == nil {
		aggregator = NewAggregator(AggregatorConfig{})
	}
	return &Engine{aggregator: aggregator}
}

// Compute produces a DRAFT salary record for one staff member and one month.
func (e *Engine) Compute(profile payroll.StaffProfile, year, month int, records []attendance.Record, rules payroll.LaborLawRuleSet) (payroll.SalaryRecord, error) {
	if err := CheckMinimumWage(profile.HourlyRate, rules); err != nil {
		return payroll.SalaryRecord{}, err
	}

	var errs validator.ValidationErrors
	if profile.Allowances.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "allowances", Message: "must not be negative"})
	}
	if profile.OtherDeductions < 0 {
		errs = append(errs, validator.ValidationError{Field: "other_deductions", Message: "must not be negative"})
	}
	if err := payroll.ValidationFailure(errs); err != nil {
		return payroll.SalaryRecord{}, err
	}

	summary, err := e.aggregator.Aggregate(profile.StaffID, year, month, records, rules)
	if err != nil {
		return payroll.SalaryRecord{}, err
	}

	wages, err := CalculateWages(summary, profile.HourlyRate, profile.Allowances, rules)
	if err != nil {
		return payroll.SalaryRecord{}, err
	}
	deductions := CalculateDeductions(wages.TotalGross(), profile.OtherDeductions, rules)

	rec := payroll.NewSalaryRecord(profile.StaffID, year, month, summary, wages, deductions, rules.Version)
	rec.Warnings = warningsFor(rec, summary)
	return rec, nil
}

func warningsFor(rec payroll.SalaryRecord, summary payroll.WorkHoursSummary) []string {
	var warnings []string
	if len(summary.IncompleteDays) > 0 {
		warnings = append(warnings, fmt.Sprintf("incomplete attendance on %s, counted as zero hours",
			strings.Join(summary.IncompleteDays, ", ")))
	}
	if rec.TotalDeductions > 0 && rec.TotalDeductions >= rec.TotalGrossPay {
		warnings = append(warnings, "total deductions are not below gross pay")
	}
	return warnings
}
