package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
)

const defaultConcurrency = 8

// Config holds the orchestration switches of the payroll service.
type Config struct {
	// Concurrency bounds the number of staff calculated at once in a batch.
	Concurrency int
	// RequireAttendance turns an empty attendance month into DataUnavailableError.
	RequireAttendance bool
	// ProtectConfirmed refuses to overwrite CONFIRMED or PAID records.
	ProtectConfirmed bool
}

type PayrollServiceImpl struct {
	payroll.AttendanceSource
	payroll.RuleSetSource
	payroll.StaffDirectory
	ledger  payroll.SalaryLedger
	engine  *Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
}

// staffProfile loads a staff member of companyID. Members of other companies
// are reported as not found.
func (p *PayrollServiceImpl) staffProfile(ctx context.Context, companyID, staffID string) (payroll.StaffProfile, error) {
	profile, err := p.StaffDirectory.GetStaffProfile(ctx, staffID)
	if err != nil {
		if errors.Is(err, payroll.ErrStaffNotFound) {
			return payroll.StaffProfile{}, err
		}
		return payroll.StaffProfile{}, fmt.Errorf("failed to get staff profile: %w", err)
	}
	if profile.CompanyID != companyID {
		return payroll.StaffProfile{}, payroll.ErrStaffNotFound
	}
	return profile, nil
}

// calculateWithRules runs one staff member against an already resolved rule set.
func (p *PayrollServiceImpl) calculateWithRules(ctx context.Context, companyID, staffID string, year, month int, rules payroll.LaborLawRuleSet) (payroll.SalaryRecord, error) {
	profile, err := p.staffProfile(ctx, companyID, staffID)
	if err != nil {
		return payroll.SalaryRecord{}, err
	}

	records, err := p.AttendanceSource.ListMonthlyAttendance(ctx, staffID, year, month)
	if err != nil {
		return payroll.SalaryRecord{}, fmt.Errorf("failed to list attendance: %w", err)
	}
	if len(records) == 0 && p.cfg.RequireAttendance {
		return payroll.SalaryRecord{}, &payroll.DataUnavailableError{StaffID: staffID, Year: year, Month: month}
	}

	// The directory key wins over whatever the profile carries.
	profile.StaffID = staffID
	rec, err := p.engine.Compute(profile, year, month, records, rules)
	if err != nil {
		return payroll.SalaryRecord{}, err
	}

	if p.ledger != nil {
		if err := p.save(ctx, rec); err != nil {
			return payroll.SalaryRecord{}, err
		}
	}

	return rec, nil
}

func (p *PayrollServiceImpl) save(ctx context.Context, rec payroll.SalaryRecord) error {
	if !p.cfg.ProtectConfirmed {
		if err := p.ledger.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("failed to save salary record: %w", err)
		}
		return nil
	}
	if err := p.ledger.UpsertDraft(ctx, rec); err != nil {
		if errors.Is(err, payroll.ErrRecordLocked) {
			return err
		}
		return fmt.Errorf("failed to save salary record: %w", err)
	}
	return nil
}

// resolveRuleSet picks the rule set in force on the last day of the period.
// Any failure to resolve it is a configuration problem.
func (p *PayrollServiceImpl) resolveRuleSet(ctx context.Context, year, month int) (payroll.LaborLawRuleSet, error) {
	end := payroll.PeriodEnd(year, month)
	rules, err := p.RuleSetSource.ActiveRuleSet(ctx, end)
	if err != nil {
		if payroll.IsBatchFatal(err) {
			return payroll.LaborLawRuleSet{}, err
		}
		return payroll.LaborLawRuleSet{}, &payroll.ConfigurationError{Date: end, Err: err}
	}
	return rules, nil
}

// Calculate implements payroll.PayrollService.
func (p *PayrollServiceImpl) Calculate(ctx context.Context, companyID, staffID string, year, month int) (payroll.SalaryRecord, error) {
	errs := payroll.ValidatePeriod(year, month)
	errs = append(errs, validateCompanyID(companyID)...)
	if validator.IsEmpty(staffID) {
		errs = append(errs, validator.ValidationError{Field: "staff_id", Message: "is required"})
	}
	if err := payroll.ValidationFailure(errs); err != nil {
		p.metrics.IncrementOutcome(outcomeOf(err))
		return payroll.SalaryRecord{}, err
	}

	rec, err := p.calculate(ctx, companyID, staffID, year, month)
	p.metrics.IncrementOutcome(outcomeOf(err))
	if err != nil {
		p.logger.WarnContext(ctx, "payroll calculation failed",
			slog.String("staff_id", staffID),
			slog.Int("year", year),
			slog.Int("month", month),
			slog.String("error", err.Error()),
		)
		return payroll.SalaryRecord{}, err
	}

	p.logger.InfoContext(ctx, "payroll calculated",
		slog.String("staff_id", staffID),
		slog.Int("year", year),
		slog.Int("month", month),
		slog.Int64("net_pay", rec.NetPay),
		slog.String("rule_set", rec.RuleSetVersion),
	)
	return rec, nil
}

func (p *PayrollServiceImpl) calculate(ctx context.Context, companyID, staffID string, year, month int) (payroll.SalaryRecord, error) {
	rules, err := p.resolveRuleSet(ctx, year, month)
	if err != nil {
		return payroll.SalaryRecord{}, err
	}
	return p.calculateWithRules(ctx, companyID, staffID, year, month, rules)
}

// CalculateCompany implements payroll.PayrollService.
func (p *PayrollServiceImpl) CalculateCompany(ctx context.Context, companyID string, year, month int) (payroll.BatchResult, error) {
	errs := payroll.ValidatePeriod(year, month)
	errs = append(errs, validateCompanyID(companyID)...)
	if err := payroll.ValidationFailure(errs); err != nil {
		return payroll.BatchResult{Year: year, Month: month}, err
	}

	staffIDs, err := p.StaffDirectory.ListStaffIDs(ctx, companyID)
	if err != nil {
		return payroll.BatchResult{Year: year, Month: month}, fmt.Errorf("failed to list staff of company %s: %w", companyID, err)
	}

	return p.CalculateBatch(ctx, companyID, staffIDs, year, month)
}

// GetRecord implements payroll.PayrollService.
func (p *PayrollServiceImpl) GetRecord(ctx context.Context, companyID, staffID string, year, month int) (payroll.SalaryRecord, error) {
	errs := payroll.ValidatePeriod(year, month)
	errs = append(errs, validateCompanyID(companyID)...)
	if err := payroll.ValidationFailure(errs); err != nil {
		return payroll.SalaryRecord{}, err
	}
	if _, err := p.staffProfile(ctx, companyID, staffID); err != nil {
		return payroll.SalaryRecord{}, err
	}
	if p.ledger == nil {
		return payroll.SalaryRecord{}, payroll.ErrSalaryRecordNotFound
	}
	return p.ledger.Get(ctx, staffID, year, month)
}

// UpdateStatus implements payroll.PayrollService.
func (p *PayrollServiceImpl) UpdateStatus(ctx context.Context, companyID, staffID string, year, month int, status payroll.SalaryStatus) (payroll.SalaryRecord, error) {
	rec, err := p.GetRecord(ctx, companyID, staffID, year, month)
	if err != nil {
		return payroll.SalaryRecord{}, err
	}
	if !rec.Status.CanTransitionTo(status) {
		return payroll.SalaryRecord{}, fmt.Errorf("%w: %s to %s", payroll.ErrInvalidStatusTransition, rec.Status, status)
	}

	if err := p.ledger.UpdateStatus(ctx, staffID, year, month, status); err != nil {
		return payroll.SalaryRecord{}, err
	}
	rec.Status = status

	p.logger.InfoContext(ctx, "salary record status updated",
		slog.String("staff_id", staffID),
		slog.Int("year", year),
		slog.Int("month", month),
		slog.String("status", string(status)),
	)
	return rec, nil
}

// ActiveRuleSet implements payroll.PayrollService.
func (p *PayrollServiceImpl) ActiveRuleSet(ctx context.Context, on time.Time) (payroll.LaborLawRuleSet, error) {
	rules, err := p.RuleSetSource.ActiveRuleSet(ctx, on)
	if err != nil && !payroll.IsBatchFatal(err) {
		return payroll.LaborLawRuleSet{}, &payroll.ConfigurationError{Date: on, Err: err}
	}
	return rules, err
}

func validateCompanyID(companyID string) validator.ValidationErrors {
	if validator.IsEmpty(companyID) {
		return validator.ValidationErrors{{Field: "company_id", Message: "is required"}}
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, payroll.ErrDataUnavailable):
		return "data_unavailable"
	case payroll.IsValidation(err):
		return "validation"
	case payroll.IsBatchFatal(err):
		return "configuration"
	}
	return "error"
}

func NewPayrollService(
	attendanceSource payroll.AttendanceSource,
	ruleSetSource payroll.RuleSetSource,
	staffDirectory payroll.StaffDirectory,
	ledger payroll.SalaryLedger,
	engine *Engine,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) payroll.PayrollService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if engine == nil {
		engine = NewEngine(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollServiceImpl{
		AttendanceSource: attendanceSource,
		RuleSetSource:    ruleSetSource,
		StaffDirectory:   staffDirectory,
		ledger:           ledger,
		engine:           engine,
		metrics:          m,
		logger:           logger,
		cfg:              cfg,
	}
}
