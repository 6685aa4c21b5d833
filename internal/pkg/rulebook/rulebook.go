// Package rulebook loads labor-law rule sets from YAML documents.
package rulebook

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRuleSets []byte

type document struct {
	RuleSets []Document `yaml:"rule_sets"`
}

type bracketDoc struct {
	Over string `yaml:"over" json:"over"`
	Rate string `yaml:"rate" json:"rate"`
}

type breakDoc struct {
	MinElapsed string `yaml:"min_elapsed" json:"min_elapsed"`
	Break      string `yaml:"break" json:"break"`
}

// Document is the serialized form of one rule set. Decimals and durations are
// kept as strings so no value passes through a float.
type Document struct {
	Version       string `yaml:"version" json:"version"`
	EffectiveDate string `yaml:"effective_date" json:"effective_date"`
	MinimumWage   string `yaml:"minimum_wage" json:"minimum_wage"`

	RegularDailyLimit string     `yaml:"regular_daily_limit" json:"regular_daily_limit"`
	BreakRules        []breakDoc `yaml:"break_rules" json:"break_rules"`

	OvertimeMultiplier string `yaml:"overtime_multiplier" json:"overtime_multiplier"`
	NightMultiplier    string `yaml:"night_multiplier" json:"night_multiplier"`
	HolidayMultiplier  string `yaml:"holiday_multiplier" json:"holiday_multiplier"`

	NightStartHour int    `yaml:"night_start_hour" json:"night_start_hour"`
	NightEndHour   int    `yaml:"night_end_hour" json:"night_end_hour"`
	NightDailyCap  string `yaml:"night_daily_cap" json:"night_daily_cap"`

	WeeklyHolidayThreshold string `yaml:"weekly_holiday_threshold" json:"weekly_holiday_threshold"`
	FullTimeWeeklyHours    string `yaml:"full_time_weekly_hours" json:"full_time_weekly_hours"`
	WeeklyHolidayCap       string `yaml:"weekly_holiday_cap" json:"weekly_holiday_cap"`

	PensionRate             string `yaml:"pension_rate" json:"pension_rate"`
	PensionIncomeFloor      string `yaml:"pension_income_floor" json:"pension_income_floor"`
	PensionIncomeCeiling    string `yaml:"pension_income_ceiling" json:"pension_income_ceiling"`
	HealthInsuranceRate     string `yaml:"health_insurance_rate" json:"health_insurance_rate"`
	LongTermCareRate        string `yaml:"long_term_care_rate" json:"long_term_care_rate"`
	EmploymentInsuranceRate string `yaml:"employment_insurance_rate" json:"employment_insurance_rate"`

	IncomeTaxBrackets  []bracketDoc `yaml:"income_tax_brackets" json:"income_tax_brackets"`
	LocalIncomeTaxRate string       `yaml:"local_income_tax_rate" json:"local_income_tax_rate"`
}

// Default returns the rule book compiled into the binary.
func Default() (*payroll.RuleBook, error) {
	return Parse(defaultRuleSets)
}

// Load reads a rule book file. An empty path falls back to Default.
func Load(path string) (*payroll.RuleBook, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule book %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document with a top-level rule_sets list.
func Parse(data []byte) (*payroll.RuleBook, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", payroll.ErrInvalidRuleSet, err)
	}

	sets := make([]payroll.LaborLawRuleSet, 0, len(doc.RuleSets))
	for _, d := range doc.RuleSets {
		rs, err := d.RuleSet()
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}
	return payroll.NewRuleBook(sets...)
}

// ParseRuleSet decodes a single rule set document. JSON input is accepted as well.
func ParseRuleSet(data []byte) (payroll.LaborLawRuleSet, error) {
	d, err := decodeDocument(data)
	if err != nil {
		return payroll.LaborLawRuleSet{}, err
	}
	return d.validRuleSet()
}

// ParseStoredRuleSet decodes a rule set document stored next to its version
// and effective date. Those two values replace whatever the document carries.
func ParseStoredRuleSet(data []byte, version string, effective time.Time) (payroll.LaborLawRuleSet, error) {
	d, err := decodeDocument(data)
	if err != nil {
		return payroll.LaborLawRuleSet{}, err
	}
	d.Version = version
	d.EffectiveDate = effective.Format("2006-01-02")
	return d.validRuleSet()
}

func decodeDocument(data []byte) (Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("%w: %v", payroll.ErrInvalidRuleSet, err)
	}
	return d, nil
}

func (d Document) validRuleSet() (payroll.LaborLawRuleSet, error) {
	rs, err := d.RuleSet()
	if err != nil {
		return payroll.LaborLawRuleSet{}, err
	}
	if err := rs.Validate(); err != nil {
		return payroll.LaborLawRuleSet{}, err
	}
	return rs, nil
}

// RuleSet converts the document into a rule set. Validation is left to the caller.
func (d Document) RuleSet() (payroll.LaborLawRuleSet, error) {
	p := parser{version: d.Version}

	rs := payroll.LaborLawRuleSet{
		Version:       strings.TrimSpace(d.Version),
		EffectiveDate: p.date("effective_date", d.EffectiveDate),
		MinimumWage:   p.decimal("minimum_wage", d.MinimumWage),

		RegularDailyLimit: p.duration("regular_daily_limit", d.RegularDailyLimit),

		OvertimeMultiplier: p.decimal("overtime_multiplier", d.OvertimeMultiplier),
		NightMultiplier:    p.decimal("night_multiplier", d.NightMultiplier),
		HolidayMultiplier:  p.decimal("holiday_multiplier", d.HolidayMultiplier),

		NightStartHour: d.NightStartHour,
		NightEndHour:   d.NightEndHour,
		NightDailyCap:  p.duration("night_daily_cap", d.NightDailyCap),

		WeeklyHolidayThreshold: p.duration("weekly_holiday_threshold", d.WeeklyHolidayThreshold),
		FullTimeWeeklyHours:    p.duration("full_time_weekly_hours", d.FullTimeWeeklyHours),
		WeeklyHolidayCap:       p.duration("weekly_holiday_cap", d.WeeklyHolidayCap),

		PensionRate:             p.decimal("pension_rate", d.PensionRate),
		PensionIncomeFloor:      p.decimal("pension_income_floor", d.PensionIncomeFloor),
		PensionIncomeCeiling:    p.decimal("pension_income_ceiling", d.PensionIncomeCeiling),
		HealthInsuranceRate:     p.decimal("health_insurance_rate", d.HealthInsuranceRate),
		LongTermCareRate:        p.decimal("long_term_care_rate", d.LongTermCareRate),
		EmploymentInsuranceRate: p.decimal("employment_insurance_rate", d.EmploymentInsuranceRate),

		LocalIncomeTaxRate: p.decimal("local_income_tax_rate", d.LocalIncomeTaxRate),
	}

	for i, b := range d.BreakRules {
		rs.BreakRules = append(rs.BreakRules, payroll.BreakRule{
			MinElapsed: p.duration(fmt.Sprintf("break_rules[%d].min_elapsed", i), b.MinElapsed),
			Break:      p.duration(fmt.Sprintf("break_rules[%d].break", i), b.Break),
		})
	}
	for i, b := range d.IncomeTaxBrackets {
		rs.IncomeTaxBrackets = append(rs.IncomeTaxBrackets, payroll.TaxBracket{
			Over: p.decimal(fmt.Sprintf("income_tax_brackets[%d].over", i), b.Over),
			Rate: p.decimal(fmt.Sprintf("income_tax_brackets[%d].rate", i), b.Rate),
		})
	}

	if p.err != nil {
		return payroll.LaborLawRuleSet{}, p.err
	}
	return rs, nil
}

// parser keeps the first conversion error so fields can be read in one pass.
type parser struct {
	version string
	err     error
}

func (p *parser) fail(field, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s: field %s: cannot parse %q: %v", payroll.ErrInvalidRuleSet, p.version, field, value, err)
	}
}

func (p *parser) decimal(field, value string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		p.fail(field, value, err)
	}
	return d
}

func (p *parser) duration(field, value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		p.fail(field, value, err)
	}
	return d
}

func (p *parser) date(field, value string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		p.fail(field, value, err)
	}
	return t
}
