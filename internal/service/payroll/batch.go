package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CalculateBatch implements payroll.PayrollService.
//
// The rule set is resolved once and shared by every worker. Per-staff failures
// are collected in the result; only a configuration error aborts the run. When
// ctx is cancelled the partial result is returned together with ctx.Err().
// Staff members outside companyID fail with ErrStaffNotFound.
func (p *PayrollServiceImpl) CalculateBatch(ctx context.Context, companyID string, staffIDs []string, year, month int) (payroll.BatchResult, error) {
	result := payroll.BatchResult{
		RunID:     newRunID(),
		Year:      year,
		Month:     month,
		Succeeded: []payroll.SalaryRecord{},
		Failed:    []payroll.BatchFailure{},
	}

	errs := payroll.ValidatePeriod(year, month)
	errs = append(errs, validateCompanyID(companyID)...)
	if err := payroll.ValidationFailure(errs); err != nil {
		return result, err
	}

	start := time.Now()
	logger := p.logger.With(slog.String("run_id", result.RunID), slog.String("company_id", companyID), slog.Int("year", year), slog.Int("month", month))

	rules, err := p.resolveRuleSet(ctx, year, month)
	if err != nil {
		logger.ErrorContext(ctx, "payroll batch aborted", slog.String("error", err.Error()))
		return result, err
	}

	var mu sync.Mutex
	fail := func(staffID string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Failed = append(result.Failed, payroll.BatchFailure{StaffID: staffID, Reason: err.Error(), Err: err})
	}
	succeed := func(rec payroll.SalaryRecord) {
		mu.Lock()
		defer mu.Unlock()
		result.Succeeded = append(result.Succeeded, rec)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, staffID := range uniqueStaffIDs(staffIDs) {
		staffID := staffID
		if strings.TrimSpace(staffID) == "" {
			fail(staffID, payroll.ValidationFailure(validator.ValidationErrors{
				{Field: "staff_id", Message: "is required"},
			}))
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				fail(staffID, err)
				return nil
			}

			rec, err := p.safeCalculate(gctx, companyID, staffID, year, month, rules)
			if err != nil {
				fail(staffID, err)
				p.metrics.IncrementOutcome(outcomeOf(err))
				if payroll.IsBatchFatal(err) {
					return err
				}
				return nil
			}
			succeed(rec)
			p.metrics.IncrementOutcome(outcomeOf(nil))
			return nil
		})
	}
	fatal := g.Wait()

	sort.Slice(result.Succeeded, func(i, j int) bool {
		return result.Succeeded[i].StaffID < result.Succeeded[j].StaffID
	})
	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].StaffID < result.Failed[j].StaffID
	})

	elapsed := time.Since(start)
	p.metrics.ObserveBatch(elapsed, result.SucceededCount(), result.FailedCount())
	logger.InfoContext(ctx, "payroll batch finished",
		slog.Int("succeeded", result.SucceededCount()),
		slog.Int("failed", result.FailedCount()),
		slog.Duration("duration", elapsed),
	)

	if fatal != nil {
		return result, fatal
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// safeCalculate turns a panic inside one staff member's calculation into a
// CalculationError so the rest of the batch keeps running.
func (p *PayrollServiceImpl) safeCalculate(ctx context.Context, companyID, staffID string, year, month int, rules payroll.LaborLawRuleSet) (rec payroll.SalaryRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "panic in payroll calculation",
				slog.String("staff_id", staffID),
				slog.Any("panic", r),
			)
			rec = payroll.SalaryRecord{}
			err = &payroll.CalculationError{StaffID: staffID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return p.calculateWithRules(ctx, companyID, staffID, year, month, rules)
}

func uniqueStaffIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
