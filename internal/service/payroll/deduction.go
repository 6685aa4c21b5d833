package payroll

import (
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// NationalPension charges the pension rate on gross pay clamped to the
// rule set's income floor and ceiling.
func NationalPension(gross int64, rules payroll.LaborLawRuleSet) int64 {
	if gross <= 0 {
		return 0
	}
	base := decimal.NewFromInt(gross)
	if base.LessThan(rules.PensionIncomeFloor) {
		base = rules.PensionIncomeFloor
	}
	if base.GreaterThan(rules.PensionIncomeCeiling) {
		base = rules.PensionIncomeCeiling
	}
	return roundWon(base.Mul(rules.PensionRate))
}

func HealthInsurance(gross int64, rules payroll.LaborLawRuleSet) int64 {
	if gross <= 0 {
		return 0
	}
	return roundWon(decimal.NewFromInt(gross).Mul(rules.HealthInsuranceRate))
}

// LongTermCare is a percentage of the health insurance deduction, not of gross pay.
func LongTermCare(healthInsurance int64, rules payroll.LaborLawRuleSet) int64 {
	if healthInsurance <= 0 {
		return 0
	}
	return roundWon(decimal.NewFromInt(healthInsurance).Mul(rules.LongTermCareRate))
}

func EmploymentInsurance(gross int64, rules payroll.LaborLawRuleSet) int64 {
	if gross <= 0 {
		return 0
	}
	return roundWon(decimal.NewFromInt(gross).Mul(rules.EmploymentInsuranceRate))
}

// IncomeTax applies the progressive monthly brackets of the rule set.
func IncomeTax(gross int64, rules payroll.LaborLawRuleSet) int64 {
	if gross <= 0 || len(rules.IncomeTaxBrackets) == 0 {
		return 0
	}

	income := decimal.NewFromInt(gross)
	tax := decimal.Zero
	for i, b := range rules.IncomeTaxBrackets {
		if !income.GreaterThan(b.Over) {
			break
		}
		upper := income
		if i+1 < len(rules.IncomeTaxBrackets) && rules.IncomeTaxBrackets[i+1].Over.LessThan(upper) {
			upper = rules.IncomeTaxBrackets[i+1].Over
		}
		tax = tax.Add(upper.Sub(b.Over).Mul(b.Rate))
	}
	return roundWon(tax)
}

// LocalIncomeTax is derived from the already rounded income tax and rounded on its own.
func LocalIncomeTax(incomeTax int64, rules payroll.LaborLawRuleSet) int64 {
	if incomeTax <= 0 {
		return 0
	}
	return roundWon(decimal.NewFromInt(incomeTax).Mul(rules.LocalIncomeTaxRate))
}

// CalculateDeductions computes every statutory deduction from the same gross
// pay. Only long-term care and local income tax depend on another deduction.
func CalculateDeductions(gross, otherDeductions int64, rules payroll.LaborLawRuleSet) payroll.DeductionComponents {
	health := HealthInsurance(gross, rules)
	incomeTax := IncomeTax(gross, rules)

	return payroll.DeductionComponents{
		NationalPension:     NationalPension(gross, rules),
		HealthInsurance:     health,
		LongTermCare:        LongTermCare(health, rules),
		EmploymentInsurance: EmploymentInsurance(gross, rules),
		IncomeTax:           incomeTax,
		LocalIncomeTax:      LocalIncomeTax(incomeTax, rules),
		OtherDeductions:     otherDeductions,
	}
}
