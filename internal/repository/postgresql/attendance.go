package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
)

type attendanceRepository struct {
	db *database.DB
}

// ListMonthlyAttendance implements payroll.AttendanceSource.
func (a *attendanceRepository) ListMonthlyAttendance(ctx context.Context, staffID string, year, month int) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `
		SELECT id, employee_id, date, clock_in, clock_out, scheduled_in, scheduled_out,
		       break_minutes, status, is_holiday
		FROM attendances
		WHERE employee_id = $1
		  AND date >= $2 AND date < $3
		ORDER BY date ASC, clock_in ASC NULLS LAST
	`

	rows, err := q.Query(ctx, query, staffID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	records := []attendance.Record{}
	for rows.Next() {
		var rec attendance.Record
		err := rows.Scan(
			&rec.ID, &rec.StaffID, &rec.WorkDate, &rec.ClockIn, &rec.ClockOut,
			&rec.ScheduledIn, &rec.ScheduledOut,
			&rec.BreakMinutes, &rec.Status, &rec.IsHoliday,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendances: %w", err)
	}

	return records, nil
}

func NewAttendanceRepository(db *database.DB) payroll.AttendanceSource {
	return &attendanceRepository{db: db}
}
