package payroll

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*60*60)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRules() payroll.LaborLawRuleSet {
	return payroll.LaborLawRuleSet{
		Version:           "TEST-2023",
		EffectiveDate:     time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		MinimumWage:       dec("9620"),
		RegularDailyLimit: 8 * time.Hour,
		BreakRules: []payroll.BreakRule{
			{MinElapsed: 4 * time.Hour, Break: 30 * time.Minute},
			{MinElapsed: 8 * time.Hour, Break: time.Hour},
		},
		OvertimeMultiplier:      dec("1.5"),
		NightMultiplier:         dec("0.5"),
		HolidayMultiplier:       dec("1.5"),
		NightStartHour:          22,
		NightEndHour:            6,
		NightDailyCap:           2 * time.Hour,
		WeeklyHolidayThreshold:  15 * time.Hour,
		FullTimeWeeklyHours:     40 * time.Hour,
		WeeklyHolidayCap:        8 * time.Hour,
		PensionRate:             dec("0.045"),
		PensionIncomeFloor:      dec("350000"),
		PensionIncomeCeiling:    dec("5530000"),
		HealthInsuranceRate:     dec("0.03545"),
		LongTermCareRate:        dec("0.1281"),
		EmploymentInsuranceRate: dec("0.009"),
		IncomeTaxBrackets: []payroll.TaxBracket{
			{Over: dec("0"), Rate: dec("0.06")},
			{Over: dec("1166667"), Rate: dec("0.15")},
			{Over: dec("4166667"), Rate: dec("0.24")},
		},
		LocalIncomeTaxRate: dec("0.1"),
	}
}

func testRuleBook(t *testing.T) *payroll.RuleBook {
	t.Helper()
	book, err := payroll.NewRuleBook(testRules())
	require.NoError(t, err)
	return book
}

// shift builds a March 2024 record in KST. An end hour before the start hour
// means the shift ends on the next day.
func shift(staffID string, day, inHour, inMin, outHour, outMin int) attendance.Record {
	in := time.Date(2024, time.March, day, inHour, inMin, 0, 0, kst)
	out := time.Date(2024, time.March, day, outHour, outMin, 0, 0, kst)
	if out.Before(in) {
		out = out.AddDate(0, 0, 1)
	}
	return attendance.Record{
		StaffID:  staffID,
		WorkDate: time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC),
		ClockIn:  &in,
		ClockOut: &out,
		Status:   attendance.StatusOnTime,
	}
}

// weekOfWork is Monday 4 to Friday 8 March 2024, 09:00-18:00 each day.
func weekOfWork(staffID string) []attendance.Record {
	var recs []attendance.Record
	for day := 4; day <= 8; day++ {
		recs = append(recs, shift(staffID, day, 9, 0, 18, 0))
	}
	return recs
}

type fakeAttendance struct {
	mu      sync.Mutex
	records map[string][]attendance.Record
	errs    map[string]error
	hook    func(staffID string)
	calls   int
}

func (f *fakeAttendance) ListMonthlyAttendance(ctx context.Context, staffID string, year, month int) ([]attendance.Record, error) {
	f.mu.Lock()
	f.calls++
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(staffID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[staffID]; ok {
		return nil, err
	}
	return f.records[staffID], nil
}

type fakeStaff struct {
	profiles  map[string]payroll.StaffProfile
	companies map[string][]string
}

func (f *fakeStaff) GetStaffProfile(_ context.Context, staffID string) (payroll.StaffProfile, error) {
	p, ok := f.profiles[staffID]
	if !ok {
		return payroll.StaffProfile{}, payroll.ErrStaffNotFound
	}
	return p, nil
}

func (f *fakeStaff) ListStaffIDs(_ context.Context, companyID string) ([]string, error) {
	return f.companies[companyID], nil
}

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]payroll.SalaryRecord
	upserts int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]payroll.SalaryRecord)}
}

func ledgerKey(staffID string, year, month int) string {
	return staffID + "/" + time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (f *fakeLedger) Upsert(_ context.Context, rec payroll.SalaryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.records[ledgerKey(rec.StaffID, rec.Year, rec.Month)] = rec
	return nil
}

func (f *fakeLedger) UpsertDraft(_ context.Context, rec payroll.SalaryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(rec.StaffID, rec.Year, rec.Month)
	if existing, ok := f.records[key]; ok && existing.Status != payroll.SalaryStatusDraft {
		return payroll.ErrRecordLocked
	}
	f.upserts++
	f.records[key] = rec
	return nil
}

func (f *fakeLedger) Get(_ context.Context, staffID string, year, month int) (payroll.SalaryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[ledgerKey(staffID, year, month)]
	if !ok {
		return payroll.SalaryRecord{}, payroll.ErrSalaryRecordNotFound
	}
	return rec, nil
}

func (f *fakeLedger) UpdateStatus(_ context.Context, staffID string, year, month int, status payroll.SalaryStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(staffID, year, month)
	rec, ok := f.records[key]
	if !ok {
		return payroll.ErrSalaryRecordNotFound
	}
	rec.Status = status
	f.records[key] = rec
	return nil
}

func profile(staffID, rate string) payroll.StaffProfile {
	return payroll.StaffProfile{StaffID: staffID, CompanyID: "company-1", HourlyRate: dec(rate)}
}
