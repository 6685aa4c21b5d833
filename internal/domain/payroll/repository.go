package payroll

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/attendance"
)

// AttendanceSource returns one staff member's attendance for a calendar month,
// ordered by work date. An empty slice means no attendance, not an error.
type AttendanceSource interface {
	ListMonthlyAttendance(ctx context.Context, staffID string, year, month int) ([]attendance.Record, error)
}

// RuleSetSource resolves the rule set active on a date. It must return a
// *ConfigurationError when nothing is active.
type RuleSetSource interface {
	ActiveRuleSet(ctx context.Context, on time.Time) (LaborLawRuleSet, error)
}

// StaffDirectory provides pay terms and company membership.
type StaffDirectory interface {
	GetStaffProfile(ctx context.Context, staffID string) (StaffProfile, error)
	ListStaffIDs(ctx context.Context, companyID string) ([]string, error)
}

// SalaryLedger persists salary records keyed by (staff_id, year, month).
// Upsert overwrites in place: the last calculation wins. UpsertDraft only
// overwrites a DRAFT row and returns ErrRecordLocked otherwise, checked in the
// same write.
type SalaryLedger interface {
	Upsert(ctx context.Context, record SalaryRecord) error
	UpsertDraft(ctx context.Context, record SalaryRecord) error
	Get(ctx context.Context, staffID string, year, month int) (SalaryRecord, error)
	UpdateStatus(ctx context.Context, staffID string, year, month int, status SalaryStatus) error
}
