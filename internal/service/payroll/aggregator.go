package payroll

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
)

// NightPolicy selects how night hours are attributed to a day.
type NightPolicy string

const (
	// NightPolicyCheckoutWindow credits min(overtime, cap) as night hours when the
	// check-out time falls inside the night window.
	NightPolicyCheckoutWindow NightPolicy = "checkout_window"
	// NightPolicyIntervalOverlap additionally limits night hours to the actual
	// overlap of the shift with the night window.
	NightPolicyIntervalOverlap NightPolicy = "interval_overlap"
)

func ParseNightPolicy(s string) (NightPolicy, error) {
	switch p := NightPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return NightPolicyCheckoutWindow, nil
	case NightPolicyCheckoutWindow, NightPolicyIntervalOverlap:
		return p, nil
	}
	return "", fmt.Errorf("unknown night policy %q", s)
}

// AggregatorConfig controls how wall-clock attendance is read.
type AggregatorConfig struct {
	Location    *time.Location
	WeekStart   time.Weekday
	NightPolicy NightPolicy
}

// Aggregator reduces one staff member's monthly attendance to classified hours.
type Aggregator struct {
	loc         *time.Location
	weekStart   time.Weekday
	nightPolicy NightPolicy
}

func NewAggregator(cfg AggregatorConfig) *Aggregator {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	policy := cfg.NightPolicy
	if policy == "" {
		policy = NightPolicyCheckoutWindow
	}
	return &Aggregator{loc: loc, weekStart: cfg.WeekStart, nightPolicy: policy}
}

func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Aggregate classifies the worked time of every record in the month.
// Records may arrive in any order; at most one record per work date is accepted.
func (a *Aggregator) Aggregate(staffID string, year, month int, records []attendance.Record, rules payroll.LaborLawRuleSet) (payroll.WorkHoursSummary, error) {
	var summary payroll.WorkHoursSummary

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, a.loc)
	monthEnd := monthStart.AddDate(0, 1, 0)

	seen := make(map[string]struct{}, len(records))
	weeks := make(map[time.Time]time.Duration)

	for _, rec := range records {
		key := rec.DateKey()
		invalid := func(reason string) error {
			return &payroll.InvalidRecordError{StaffID: staffID, Date: key, Reason: reason}
		}

		if rec.WorkDate.IsZero() {
			return payroll.WorkHoursSummary{}, invalid("work date is missing")
		}
		if rec.WorkDate.Year() != year || int(rec.WorkDate.Month()) != month {
			return payroll.WorkHoursSummary{}, invalid("work date outside pay period")
		}
		if _, dup := seen[key]; dup {
			return payroll.WorkHoursSummary{}, &payroll.DuplicateRecordError{StaffID: staffID, Date: key}
		}
		seen[key] = struct{}{}

		if !rec.HasClockIn() {
			// A check-out without a check-in is a gap, a day with neither is absence.
			if rec.HasClockOut() {
				summary.IncompleteDays = append(summary.IncompleteDays, key)
			}
			continue
		}

		in := rec.ClockIn.In(a.loc)
		if in.Before(monthStart) || !in.Before(monthEnd) {
			return payroll.WorkHoursSummary{}, invalid("check-in outside pay period")
		}

		if !rec.IsComplete() {
			summary.IncompleteDays = append(summary.IncompleteDays, key)
			continue
		}

		out := rec.ClockOut.In(a.loc)
		if out.Before(in) {
			return payroll.WorkHoursSummary{}, invalid("check-out before check-in")
		}
		// A shift may end exactly at midnight closing the month.
		if out.After(monthEnd) {
			return payroll.WorkHoursSummary{}, invalid("check-out outside pay period")
		}

		elapsed := out.Sub(in)
		brk := rules.BreakFor(elapsed)
		if rec.BreakMinutes != nil {
			if *rec.BreakMinutes < 0 {
				return payroll.WorkHoursSummary{}, invalid("break minutes must not be negative")
			}
			brk = min(time.Duration(*rec.BreakMinutes)*time.Minute, elapsed)
		}
		worked := elapsed - brk

		summary.WorkDays++
		summary.Total += worked

		day := time.Date(rec.WorkDate.Year(), rec.WorkDate.Month(), rec.WorkDate.Day(), 0, 0, 0, 0, time.UTC)
		weeks[a.startOfWeek(day)] += worked

		if rec.IsHoliday || rec.Status == attendance.StatusHoliday {
			summary.Holiday += worked
			continue
		}

		regular := min(worked, rules.RegularDailyLimit)
		overtime := worked - regular
		summary.Regular += regular
		summary.Overtime += overtime
		summary.Night += a.nightHours(in, out, overtime, rules)
	}

	summary.Weeks = make([]payroll.WeeklyHours, 0, len(weeks))
	for start, worked := range weeks {
		summary.Weeks = append(summary.Weeks, payroll.WeeklyHours{
			WeekStart: start,
			Worked:    worked,
			Eligible:  worked >= rules.WeeklyHolidayThreshold,
		})
	}
	sort.Slice(summary.Weeks, func(i, j int) bool {
		return summary.Weeks[i].WeekStart.Before(summary.Weeks[j].WeekStart)
	})
	sort.Strings(summary.IncompleteDays)

	return summary, nil
}

// nightHours never exceeds the day's overtime or the daily night cap.
func (a *Aggregator) nightHours(in, out time.Time, overtime time.Duration, rules payroll.LaborLawRuleSet) time.Duration {
	if overtime <= 0 {
		return 0
	}
	night := min(overtime, rules.NightDailyCap)

	switch a.nightPolicy {
	case NightPolicyIntervalOverlap:
		return min(night, nightOverlap(in, out, rules, a.loc))
	default:
		if !rules.InNightWindow(out) {
			return 0
		}
		return night
	}
}

// nightOverlap measures how much of [in, out) falls inside night windows.
func nightOverlap(in, out time.Time, rules payroll.LaborLawRuleSet, loc *time.Location) time.Duration {
	var total time.Duration
	wraps := rules.NightStartHour > rules.NightEndHour

	first := time.Date(in.Year(), in.Month(), in.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	for day := first; day.Before(out); day = day.AddDate(0, 0, 1) {
		start := time.Date(day.Year(), day.Month(), day.Day(), rules.NightStartHour, 0, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), rules.NightEndHour, 0, 0, 0, loc)
		if wraps {
			end = end.AddDate(0, 0, 1)
		}

		lo, hi := maxTime(in, start), minTime(out, end)
		if hi.After(lo) {
			total += hi.Sub(lo)
		}
	}
	return total
}

func (a *Aggregator) startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) - int(a.weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
