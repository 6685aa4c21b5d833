package payroll

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TaxBracket is one step of the progressive monthly income tax schedule.
// Income above Over (up to the next bracket) is taxed at Rate.
type TaxBracket struct {
	Over decimal.Decimal `yaml:"over" json:"over"`
	Rate decimal.Decimal `yaml:"rate" json:"rate"`
}

// BreakRule grants Break when the raw elapsed time of a day reaches MinElapsed.
type BreakRule struct {
	MinElapsed time.Duration `yaml:"min_elapsed" json:"min_elapsed"`
	Break      time.Duration `yaml:"break" json:"break"`
}

// LaborLawRuleSet is an immutable, effective-dated bundle of statutory rates
// and thresholds. It is passed by value into every calculation.
type LaborLawRuleSet struct {
	Version       string
	EffectiveDate time.Time

	MinimumWage decimal.Decimal

	RegularDailyLimit time.Duration
	BreakRules        []BreakRule

	OvertimeMultiplier decimal.Decimal
	NightMultiplier    decimal.Decimal
	HolidayMultiplier  decimal.Decimal

	// Night window is [NightStartHour:00, NightEndHour:00) local time, wrapping midnight.
	NightStartHour int
	NightEndHour   int
	NightDailyCap  time.Duration

	WeeklyHolidayThreshold time.Duration
	FullTimeWeeklyHours    time.Duration
	WeeklyHolidayCap       time.Duration

	PensionRate             decimal.Decimal
	PensionIncomeFloor      decimal.Decimal
	PensionIncomeCeiling    decimal.Decimal
	HealthInsuranceRate     decimal.Decimal
	LongTermCareRate        decimal.Decimal
	EmploymentInsuranceRate decimal.Decimal

	IncomeTaxBrackets  []TaxBracket
	LocalIncomeTaxRate decimal.Decimal
}

// Validate checks the internal consistency of the rule set.
func (r LaborLawRuleSet) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidRuleSet, r.Version, fmt.Sprintf(format, args...))
	}

	if r.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidRuleSet)
	}
	if r.EffectiveDate.IsZero() {
		return fail("effective date is required")
	}
	if !r.MinimumWage.IsPositive() {
		return fail("minimum wage must be positive")
	}
	if r.RegularDailyLimit <= 0 {
		return fail("regular daily limit must be positive")
	}
	for i, br := range r.BreakRules {
		if br.MinElapsed <= 0 || br.Break < 0 || br.Break >= br.MinElapsed {
			return fail("break rule %d is inconsistent", i)
		}
	}

	for name, m := range map[string]decimal.Decimal{
		"overtime multiplier": r.OvertimeMultiplier,
		"night multiplier":    r.NightMultiplier,
		"holiday multiplier":  r.HolidayMultiplier,
	} {
		if m.IsNegative() {
			return fail("%s must not be negative", name)
		}
	}

	if r.NightStartHour < 0 || r.NightStartHour > 23 || r.NightEndHour < 0 || r.NightEndHour > 23 {
		return fail("night window hours must be within 0-23")
	}
	if r.NightStartHour == r.NightEndHour {
		return fail("night window must not be empty")
	}
	if r.NightDailyCap < 0 {
		return fail("night daily cap must not be negative")
	}

	if r.WeeklyHolidayThreshold <= 0 || r.FullTimeWeeklyHours <= 0 || r.WeeklyHolidayCap <= 0 {
		return fail("weekly holiday thresholds must be positive")
	}

	one := decimal.NewFromInt(1)
	for name, rate := range map[string]decimal.Decimal{
		"pension rate":              r.PensionRate,
		"health insurance rate":     r.HealthInsuranceRate,
		"long-term care rate":       r.LongTermCareRate,
		"employment insurance rate": r.EmploymentInsuranceRate,
		"local income tax rate":     r.LocalIncomeTaxRate,
	} {
		if rate.IsNegative() || rate.GreaterThan(one) {
			return fail("%s must be within [0, 1]", name)
		}
	}
	if r.PensionIncomeFloor.IsNegative() || r.PensionIncomeCeiling.LessThan(r.PensionIncomeFloor) {
		return fail("pension floor must be non-negative and not above the ceiling")
	}

	for i, b := range r.IncomeTaxBrackets {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return fail("income tax bracket %d rate must be within [0, 1]", i)
		}
		if b.Over.IsNegative() {
			return fail("income tax bracket %d threshold must not be negative", i)
		}
		if i > 0 && !b.Over.GreaterThan(r.IncomeTaxBrackets[i-1].Over) {
			return fail("income tax brackets must be strictly ascending")
		}
	}

	return nil
}

// InNightWindow reports whether the wall-clock hour of t falls inside the night window.
func (r LaborLawRuleSet) InNightWindow(t time.Time) bool {
	h := t.Hour()
	if r.NightStartHour > r.NightEndHour {
		return h >= r.NightStartHour || h < r.NightEndHour
	}
	return h >= r.NightStartHour && h < r.NightEndHour
}

// BreakFor returns the statutory break for a raw elapsed time. Rules are
// checked from the longest threshold down.
func (r LaborLawRuleSet) BreakFor(elapsed time.Duration) time.Duration {
	var best *BreakRule
	for i := range r.BreakRules {
		br := &r.BreakRules[i]
		if elapsed >= br.MinElapsed && (best == nil || br.MinElapsed > best.MinElapsed) {
			best = br
		}
	}
	if best == nil {
		return 0
	}
	return best.Break
}

func (r LaborLawRuleSet) clone() LaborLawRuleSet {
	c := r
	c.BreakRules = append([]BreakRule(nil), r.BreakRules...)
	c.IncomeTaxBrackets = append([]TaxBracket(nil), r.IncomeTaxBrackets...)
	return c
}

// RuleBook holds every known rule-set version ordered by effective date.
type RuleBook struct {
	sets []LaborLawRuleSet
}

// NewRuleBook validates the rule sets and orders them by effective date.
// Two versions may not share an effective date.
func NewRuleBook(sets ...LaborLawRuleSet) (*RuleBook, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: rule book is empty", ErrInvalidRuleSet)
	}

	sorted := make([]LaborLawRuleSet, 0, len(sets))
	seen := make(map[string]string)
	for _, s := range sets {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		key := dateOnly(s.EffectiveDate).Format("2006-01-02")
		if other, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s and %s share effective date %s", ErrInvalidRuleSet, other, s.Version, key)
		}
		seen[key] = s.Version
		sorted = append(sorted, s.clone())
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
	})

	return &RuleBook{sets: sorted}, nil
}

// Active returns the rule set with the latest effective date on or before on.
func (b *RuleBook) Active(on time.Time) (LaborLawRuleSet, error) {
	day := dateOnly(on)
	for i := len(b.sets) - 1; i >= 0; i-- {
		if !dateOnly(b.sets[i].EffectiveDate).After(day) {
			return b.sets[i].clone(), nil
		}
	}
	return LaborLawRuleSet{}, &ConfigurationError{Date: day, Err: ErrNoActiveRuleSet}
}

// ActiveRuleSet implements RuleSetSource.
func (b *RuleBook) ActiveRuleSet(_ context.Context, on time.Time) (LaborLawRuleSet, error) {
	return b.Active(on)
}

// Versions lists the versions in effective-date order.
func (b *RuleBook) Versions() []string {
	out := make([]string, 0, len(b.sets))
	for _, s := range b.sets {
		out = append(out, s.Version)
	}
	return out
}

// PeriodEnd returns the last calendar day of the month as a UTC date.
func PeriodEnd(year, month int) time.Time {
	return time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
