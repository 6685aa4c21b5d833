package payroll

import (
	"context"
	"time"
)

// PayrollService calculates and manages salary records. Every staff-keyed call
// is scoped to companyID: staff members of other companies are reported as
// ErrStaffNotFound.
type PayrollService interface {
	Calculate(ctx context.Context, companyID, staffID string, year, month int) (SalaryRecord, error)
	CalculateBatch(ctx context.Context, companyID string, staffIDs []string, year, month int) (BatchResult, error)
	CalculateCompany(ctx context.Context, companyID string, year, month int) (BatchResult, error)

	GetRecord(ctx context.Context, companyID, staffID string, year, month int) (SalaryRecord, error)
	UpdateStatus(ctx context.Context, companyID, staffID string, year, month int, status SalaryStatus) (SalaryRecord, error)

	ActiveRuleSet(ctx context.Context, on time.Time) (LaborLawRuleSet, error)
}
