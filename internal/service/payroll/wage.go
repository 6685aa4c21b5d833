package payroll

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// CheckMinimumWage rejects an hourly rate below the rule set's minimum wage.
func CheckMinimumWage(hourlyRate decimal.Decimal, rules payroll.LaborLawRuleSet) error {
	if hourlyRate.LessThan(rules.MinimumWage) {
		return &payroll.MinimumWageError{
			HourlyRate:  hourlyRate,
			MinimumWage: rules.MinimumWage,
			RuleSet:     rules.Version,
		}
	}
	return nil
}

func BasePay(regular time.Duration, hourlyRate decimal.Decimal) int64 {
	return payForDuration(regular, hourlyRate, one)
}

func OvertimePay(overtime time.Duration, hourlyRate, multiplier decimal.Decimal) int64 {
	return payForDuration(overtime, hourlyRate, multiplier)
}

// NightPay is the additive night premium on top of whatever base or overtime
// pay already covers the same hours.
func NightPay(night time.Duration, hourlyRate, multiplier decimal.Decimal) int64 {
	return payForDuration(night, hourlyRate, multiplier)
}

func HolidayPay(holiday time.Duration, hourlyRate, multiplier decimal.Decimal) int64 {
	return payForDuration(holiday, hourlyRate, multiplier)
}

// WeeklyHolidayPay pays one week's statutory paid holiday:
// round(min(worked/fullTimeWeek × cap, cap) × rate), zero below the threshold.
func WeeklyHolidayPay(worked time.Duration, hourlyRate decimal.Decimal, rules payroll.LaborLawRuleSet) int64 {
	if worked < rules.WeeklyHolidayThreshold || !hourlyRate.IsPositive() {
		return 0
	}

	capSecs := seconds(rules.WeeklyHolidayCap)
	eligible := seconds(worked).Mul(capSecs)
	fullTime := seconds(rules.FullTimeWeeklyHours)

	// eligible/fullTime is compared before dividing to keep the division single.
	if eligible.GreaterThanOrEqual(capSecs.Mul(fullTime)) {
		return roundWon(capSecs.Mul(hourlyRate).Div(secondsPerHour))
	}
	return roundWon(eligible.Mul(hourlyRate).Div(fullTime.Mul(secondsPerHour)))
}

// CalculateWages turns an hours summary into wage components. The minimum
// wage check runs before any component is computed.
func CalculateWages(summary payroll.WorkHoursSummary, hourlyRate decimal.Decimal, allowances payroll.Allowances, rules payroll.LaborLawRuleSet) (payroll.WageComponents, error) {
	if err := CheckMinimumWage(hourlyRate, rules); err != nil {
		return payroll.WageComponents{}, err
	}

	weekly := int64(0)
	for _, w := range summary.Weeks {
		if w.Eligible {
			weekly += WeeklyHolidayPay(w.Worked, hourlyRate, rules)
		}
	}

	return payroll.WageComponents{
		BasePay:          BasePay(summary.Regular, hourlyRate),
		OvertimePay:      OvertimePay(summary.Overtime, hourlyRate, rules.OvertimeMultiplier),
		NightPay:         NightPay(summary.Night, hourlyRate, rules.NightMultiplier),
		HolidayPay:       HolidayPay(summary.Holiday, hourlyRate, rules.HolidayMultiplier),
		WeeklyHolidayPay: weekly,
		Allowances:       allowances,
	}, nil
}
