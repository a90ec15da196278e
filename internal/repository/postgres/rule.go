package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// RuleRepo loads automation rules. Conditions and actions are stored
// as JSON columns; actions unmarshal through the tagged-union decoder
// so unknown types survive with their discriminator intact.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed rule repository.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

// List returns all rules, active and inactive, ordered by ID. The
// engine filters on IsActive itself so a rule toggle is visible on the
// next trigger without cache invalidation.
func (r *RuleRepo) List(ctx context.Context) ([]domain.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, trigger, conditions, actions, is_active, created_at, updated_at
		FROM crm_automation_rules
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.AutomationRule
	for rows.Next() {
		var rule domain.AutomationRule
		var conditionsJSON, actionsJSON []byte
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Trigger, &conditionsJSON, &actionsJSON,
			&rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if len(conditionsJSON) > 0 && string(conditionsJSON) != "null" {
			rule.Conditions = &domain.RuleConditions{}
			if err := json.Unmarshal(conditionsJSON, rule.Conditions); err != nil {
				return nil, fmt.Errorf("decode rule %d conditions: %w", rule.ID, err)
			}
		}
		if len(actionsJSON) > 0 {
			if err := json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
				return nil, fmt.Errorf("decode rule %d actions: %w", rule.ID, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
