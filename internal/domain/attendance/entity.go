package attendance

import (
	"time"
)

// Status tags written by the attendance subsystem. The payroll engine only reads them.
const (
	StatusOnTime  = "on_time"
	StatusLate    = "late"
	StatusAbsent  = "absent"
	StatusHoliday = "holiday"
)

// Record is one staff member's attendance for one work date.
// ClockIn/ClockOut are nil when the event never happened.
// BreakMinutes is nil when the break has to be derived from the elapsed time.
// Pay is computed from the actual times only; the scheduled times are informational.
type Record struct {
	ID           string
	StaffID      string
	WorkDate     time.Time
	ClockIn      *time.Time
	ClockOut     *time.Time
	ScheduledIn  *time.Time
	ScheduledOut *time.Time
	BreakMinutes *int
	Status       string
	IsHoliday    bool
}

// HasClockIn reports whether the staff member checked in at all.
func (r Record) HasClockIn() bool {
	return r.ClockIn != nil && !r.ClockIn.IsZero()
}

func (r Record) HasClockOut() bool {
	return r.ClockOut != nil && !r.ClockOut.IsZero()
}

// IsComplete reports whether both check-in and check-out are present.
func (r Record) IsComplete() bool {
	return r.HasClockIn() && r.HasClockOut()
}

// Elapsed returns the raw time between check-in and check-out.
// Zero for incomplete records.
func (r Record) Elapsed() time.Duration {
	if !r.IsComplete() {
		return 0
	}
	return r.ClockOut.Sub(*r.ClockIn)
}

// DateKey formats the calendar work date as YYYY-MM-DD. Work dates are calendar
// dates, so the value is read as stored and never shifted into another zone.
func (r Record) DateKey() string {
	return r.WorkDate.Format("2006-01-02")
}
