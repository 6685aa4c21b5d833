package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const employmentStatusActive = "active"

type staffRepository struct {
	db *database.DB
}

// GetStaffProfile implements payroll.StaffDirectory.
func (s *staffRepository) GetStaffProfile(ctx context.Context, staffID string) (payroll.StaffProfile, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT e.id, e.company_id, t.hourly_rate,
			   t.meal_allowance, t.transport_allowance, t.position_allowance, t.other_allowances,
			   t.other_deductions
		FROM employees e
		JOIN employee_pay_terms t ON t.employee_id = e.id
		WHERE e.id = $1 AND e.deleted_at IS NULL
	`

	var p payroll.StaffProfile
	err := q.QueryRow(ctx, query, staffID).Scan(
		&p.StaffID, &p.CompanyID, &p.HourlyRate,
		&p.Allowances.Meal, &p.Allowances.Transport, &p.Allowances.Position, &p.Allowances.Other,
		&p.OtherDeductions,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.StaffProfile{}, payroll.ErrStaffNotFound
		}
		return payroll.StaffProfile{}, fmt.Errorf("failed to get staff profile: %w", err)
	}

	return p, nil
}

// ListStaffIDs implements payroll.StaffDirectory. Only active staff with pay terms are listed.
func (s *staffRepository) ListStaffIDs(ctx context.Context, companyID string) ([]string, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT e.id
		FROM employees e
		JOIN employee_pay_terms t ON t.employee_id = e.id
		WHERE e.company_id = $1 AND e.employment_status = $2 AND e.deleted_at IS NULL
		ORDER BY e.id
	`

	rows, err := q.Query(ctx, query, companyID, employmentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan staff ids: %w", err)
	}
	return ids, nil
}

func NewStaffRepository(db *database.DB) payroll.StaffDirectory {
	return &staffRepository{db: db}
}
