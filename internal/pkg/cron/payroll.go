package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
)

// PayrollJobs closes the previous month for a fixed list of companies.
type PayrollJobs struct {
	payrollService payroll.PayrollService
	companyIDs     []string
	runDay         int
	loc            *time.Location
	logger         *slog.Logger
	now            func() time.Time

	mu      sync.Mutex
	lastRun map[string]string // company_id -> "YYYY-MM" already calculated
}

// NewPayrollJobs creates the monthly payroll job. runDay is the local day of
// month the job fires on; zero disables it.
func NewPayrollJobs(payrollService payroll.PayrollService, runDay int, companyIDs []string, loc *time.Location, logger *slog.Logger) *PayrollJobs {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollJobs{
		payrollService: payrollService,
		companyIDs:     companyIDs,
		runDay:         runDay,
		loc:            loc,
		logger:         logger,
		now:            time.Now,
		lastRun:        make(map[string]string),
	}
}

// RegisterJobs registers the monthly run, checked every hour.
func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) {
	if j.runDay == 0 || len(j.companyIDs) == 0 {
		j.logger.Info("Cron: monthly payroll run disabled")
		return
	}
	scheduler.AddJob("monthly_payroll_run", 1*time.Hour, j.RunMonthlyPayroll)
}

// RunMonthlyPayroll calculates the previous month for every configured company
// on the run day. A company is calculated once per period; companies that fail
// with an error are retried on the next tick.
func (j *PayrollJobs) RunMonthlyPayroll(ctx context.Context) error {
	now := j.now().In(j.loc)
	if now.Day() != j.runDay {
		return nil
	}

	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, j.loc).AddDate(0, -1, 0)
	year, month := prev.Year(), int(prev.Month())
	period := prev.Format("2006-01")

	var errs []error
	for _, companyID := range j.companyIDs {
		if j.alreadyRan(companyID, period) {
			continue
		}

		j.logger.InfoContext(ctx, "Cron: starting payroll run", "company_id", companyID, "period", period)

		result, err := j.payrollService.CalculateCompany(ctx, companyID, year, month)
		if err != nil {
			j.logger.ErrorContext(ctx, "Cron: payroll run failed",
				"company_id", companyID,
				"period", period,
				"run_id", result.RunID,
				"error", err)
			errs = append(errs, fmt.Errorf("company %s: %w", companyID, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		j.markRan(companyID, period)
		j.logger.InfoContext(ctx, "Cron: payroll run completed",
			"company_id", companyID,
			"period", period,
			"run_id", result.RunID,
			"succeeded", result.SucceededCount(),
			"failed", result.FailedCount())
	}

	return errors.Join(errs...)
}

func (j *PayrollJobs) alreadyRan(companyID, period string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun[companyID] == period
}

func (j *PayrollJobs) markRan(companyID, period string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastRun[companyID] = period
}
