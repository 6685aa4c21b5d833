package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type salaryRecordRepository struct {
	db *database.DB
}

// Upsert implements payroll.SalaryLedger. A recalculation overwrites the
// stored row in place and resets it to the status of the new record.
func (r *salaryRecordRepository) Upsert(ctx context.Context, rec payroll.SalaryRecord) error {
	_, err := r.upsert(ctx, rec, false)
	return err
}

// UpsertDraft implements payroll.SalaryLedger. The status check is part of the
// conflict clause, so a non-DRAFT row leaves zero rows affected.
func (r *salaryRecordRepository) UpsertDraft(ctx context.Context, rec payroll.SalaryRecord) error {
	written, err := r.upsert(ctx, rec, true)
	if err != nil {
		return err
	}
	if !written {
		return payroll.ErrRecordLocked
	}
	return nil
}

func (r *salaryRecordRepository) upsert(ctx context.Context, rec payroll.SalaryRecord, draftOnly bool) (bool, error) {
	q := GetQuerier(ctx, r.db)

	warnings := rec.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return false, fmt.Errorf("failed to encode warnings: %w", err)
	}

	query := `
		INSERT INTO salary_records (
			staff_id, year, month,
			base_salary, overtime_pay, night_pay, holiday_pay, weekly_holiday_pay,
			meal_allowance, transport_allowance, position_allowance, other_allowances,
			total_gross_pay,
			national_pension, health_insurance, long_term_care, employment_insurance,
			income_tax, local_income_tax, other_deductions,
			total_deductions, net_pay, work_days, total_hours, status, rule_set_version, warnings
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
		ON CONFLICT (staff_id, year, month) DO UPDATE SET
			base_salary = EXCLUDED.base_salary,
			overtime_pay = EXCLUDED.overtime_pay,
			night_pay = EXCLUDED.night_pay,
			holiday_pay = EXCLUDED.holiday_pay,
			weekly_holiday_pay = EXCLUDED.weekly_holiday_pay,
			meal_allowance = EXCLUDED.meal_allowance,
			transport_allowance = EXCLUDED.transport_allowance,
			position_allowance = EXCLUDED.position_allowance,
			other_allowances = EXCLUDED.other_allowances,
			total_gross_pay = EXCLUDED.total_gross_pay,
			national_pension = EXCLUDED.national_pension,
			health_insurance = EXCLUDED.health_insurance,
			long_term_care = EXCLUDED.long_term_care,
			employment_insurance = EXCLUDED.employment_insurance,
			income_tax = EXCLUDED.income_tax,
			local_income_tax = EXCLUDED.local_income_tax,
			other_deductions = EXCLUDED.other_deductions,
			total_deductions = EXCLUDED.total_deductions,
			net_pay = EXCLUDED.net_pay,
			work_days = EXCLUDED.work_days,
			total_hours = EXCLUDED.total_hours,
			status = EXCLUDED.status,
			rule_set_version = EXCLUDED.rule_set_version,
			warnings = EXCLUDED.warnings,
			updated_at = NOW()
	`
	if draftOnly {
		query += `WHERE salary_records.status = 'DRAFT'`
	}

	tag, err := q.Exec(ctx, query,
		rec.StaffID, rec.Year, rec.Month,
		rec.BasePay, rec.OvertimePay, rec.NightPay, rec.HolidayPay, rec.WeeklyHolidayPay,
		rec.Meal, rec.Transport, rec.Position, rec.Other,
		rec.TotalGrossPay,
		rec.NationalPension, rec.HealthInsurance, rec.LongTermCare, rec.EmploymentInsurance,
		rec.IncomeTax, rec.LocalIncomeTax, rec.OtherDeductions,
		rec.TotalDeductions, rec.NetPay, rec.WorkDays, rec.TotalHours, string(rec.Status), rec.RuleSetVersion, warningsJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert salary record: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Get implements payroll.SalaryLedger.
func (r *salaryRecordRepository) Get(ctx context.Context, staffID string, year, month int) (payroll.SalaryRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT staff_id, year, month,
			   base_salary, overtime_pay, night_pay, holiday_pay, weekly_holiday_pay,
			   meal_allowance, transport_allowance, position_allowance, other_allowances,
			   total_gross_pay,
			   national_pension, health_insurance, long_term_care, employment_insurance,
			   income_tax, local_income_tax, other_deductions,
			   total_deductions, net_pay, work_days, total_hours, status, rule_set_version, warnings
		FROM salary_records
		WHERE staff_id = $1 AND year = $2 AND month = $3
	`

	var rec payroll.SalaryRecord
	var status string
	var warningsBytes []byte
	err := q.QueryRow(ctx, query, staffID, year, month).Scan(
		&rec.StaffID, &rec.Year, &rec.Month,
		&rec.BasePay, &rec.OvertimePay, &rec.NightPay, &rec.HolidayPay, &rec.WeeklyHolidayPay,
		&rec.Meal, &rec.Transport, &rec.Position, &rec.Other,
		&rec.TotalGrossPay,
		&rec.NationalPension, &rec.HealthInsurance, &rec.LongTermCare, &rec.EmploymentInsurance,
		&rec.IncomeTax, &rec.LocalIncomeTax, &rec.OtherDeductions,
		&rec.TotalDeductions, &rec.NetPay, &rec.WorkDays, &rec.TotalHours, &status, &rec.RuleSetVersion, &warningsBytes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.SalaryRecord{}, payroll.ErrSalaryRecordNotFound
		}
		return payroll.SalaryRecord{}, fmt.Errorf("failed to get salary record: %w", err)
	}

	rec.Status = payroll.SalaryStatus(status)
	if err := json.Unmarshal(warningsBytes, &rec.Warnings); err != nil {
		return payroll.SalaryRecord{}, fmt.Errorf("failed to decode warnings: %w", err)
	}
	if len(rec.Warnings) == 0 {
		rec.Warnings = nil
	}

	return rec, nil
}

// UpdateStatus implements payroll.SalaryLedger. The row is locked while the
// transition is checked so two callers cannot both advance the same status.
func (r *salaryRecordRepository) UpdateStatus(ctx context.Context, staffID string, year, month int, status payroll.SalaryStatus) error {
	return WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		var current string
		err := q.QueryRow(ctx, `
			SELECT status FROM salary_records
			WHERE staff_id = $1 AND year = $2 AND month = $3
			FOR UPDATE
		`, staffID, year, month).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payroll.ErrSalaryRecordNotFound
			}
			return fmt.Errorf("failed to lock salary record: %w", err)
		}

		if !payroll.SalaryStatus(current).CanTransitionTo(status) {
			return fmt.Errorf("%w: %s to %s", payroll.ErrInvalidStatusTransition, current, status)
		}

		_, err = q.Exec(ctx, `
			UPDATE salary_records
			SET status = $4, updated_at = NOW()
			WHERE staff_id = $1 AND year = $2 AND month = $3
		`, staffID, year, month, string(status))
		if err != nil {
			return fmt.Errorf("failed to update salary record status: %w", err)
		}

		return nil
	})
}

func NewSalaryRecordRepository(db *database.DB) payroll.SalaryLedger {
	return &salaryRecordRepository{db: db}
}
