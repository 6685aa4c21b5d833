package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/rulebook"
	"github.com/jackc/pgx/v5"
)

type ruleSetRepository struct {
	db *database.DB
}

// ActiveRuleSet implements payroll.RuleSetSource. Each row stores one rule set
// document; the row's version and effective date are authoritative.
func (r *ruleSetRepository) ActiveRuleSet(ctx context.Context, on time.Time) (payroll.LaborLawRuleSet, error) {
	q := GetQuerier(ctx, r.db)
	day := time.Date(on.Year(), on.Month(), on.Day(), 0, 0, 0, 0, time.UTC)

	query := `
		SELECT version, effective_date, rules
		FROM labor_law_rule_sets
		WHERE effective_date <= $1
		ORDER BY effective_date DESC
		LIMIT 1
	`

	var version string
	var effective time.Time
	var doc []byte
	err := q.QueryRow(ctx, query, day).Scan(&version, &effective, &doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.LaborLawRuleSet{}, &payroll.ConfigurationError{Date: day, Err: payroll.ErrNoActiveRuleSet}
		}
		return payroll.LaborLawRuleSet{}, &payroll.ConfigurationError{Date: day, Err: fmt.Errorf("failed to query rule set: %w", err)}
	}

	rs, err := rulebook.ParseStoredRuleSet(doc, version, effective)
	if err != nil {
		return payroll.LaborLawRuleSet{}, &payroll.ConfigurationError{Date: day, Err: err}
	}

	return rs, nil
}

func NewRuleSetRepository(db *database.DB) payroll.RuleSetSource {
	return &ruleSetRepository{db: db}
}
