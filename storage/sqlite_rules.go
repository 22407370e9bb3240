package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"argus/core"

	"go.uber.org/zap"
)

// SQLiteRuleStorage handles rule persistence in SQLite.
type SQLiteRuleStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteRuleStorage creates a new SQLite rule storage handler.
func NewSQLiteRuleStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteRuleStorage {
	return &SQLiteRuleStorage{sqlite: sqlite, logger: logger}
}

const ruleColumns = `id, name, attack_type, conditions, conclusion, cf, enabled, created_at, updated_at`

// scanRule adapts one database row into a core.Rule, applying the external
// rule-source contract: a NULL cf defaults to core.DefaultCF and a NULL or
// empty conclusion becomes core.UnknownConclusion. A row with no conditions
// is invalid and returns an error; callers decide whether that blocks the
// whole read or just the row.
func scanRule(scan func(dest ...interface{}) error) (*core.Rule, error) {
	var (
		rule           core.Rule
		attackType     sql.NullString
		conditionsJSON string
		conclusion     sql.NullString
		cf             sql.NullFloat64
	)
	if err := scan(&rule.ID, &rule.Name, &attackType, &conditionsJSON,
		&conclusion, &cf, &rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}

	rule.AttackType = attackType.String

	if conditionsJSON != "" {
		if err := json.Unmarshal([]byte(conditionsJSON), &rule.Conditions); err != nil {
			return nil, fmt.Errorf("rule %s: malformed conditions: %w", rule.ID, err)
		}
	}
	if len(rule.Conditions) == 0 {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, core.ErrEmptyConditions)
	}

	rule.Conclusion = core.UnknownConclusion
	if conclusion.Valid && conclusion.String != "" {
		rule.Conclusion = conclusion.String
	}

	rule.CF = core.DefaultCF
	if cf.Valid {
		rule.CF = cf.Float64
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	return &rule, nil
}

// GetRules retrieves all rules ordered by creation time, newest first.
// Invalid legacy rows are skipped with a warning rather than failing the
// whole listing.
func (srs *SQLiteRuleStorage) GetRules() ([]*core.Rule, error) {
	return srs.queryRules(fmt.Sprintf(
		`SELECT %s FROM rules ORDER BY created_at DESC`, ruleColumns))
}

// GetEnabledRules retrieves the active rule base in a stable iteration
// order (creation time ascending, ID as tiebreaker). CF accumulation is
// applied in this order, so it is part of the engine's observable contract.
func (srs *SQLiteRuleStorage) GetEnabledRules() ([]*core.Rule, error) {
	return srs.queryRules(fmt.Sprintf(
		`SELECT %s FROM rules WHERE enabled = 1 ORDER BY created_at ASC, id ASC`, ruleColumns))
}

func (srs *SQLiteRuleStorage) queryRules(query string) ([]*core.Rule, error) {
	rows, err := srs.sqlite.ReadDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []*core.Rule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			// A bad stored row must never reach the engine, and must not be
			// silently dropped either.
			srs.logger.Warnw("Skipping invalid rule row", "error", err)
			continue
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

// GetRule retrieves a single rule by ID.
func (srs *SQLiteRuleStorage) GetRule(id string) (*core.Rule, error) {
	row := srs.sqlite.ReadDB.QueryRow(fmt.Sprintf(
		`SELECT %s FROM rules WHERE id = ?`, ruleColumns), id)

	rule, err := scanRule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// CreateRule validates and persists a new rule.
func (srs *SQLiteRuleStorage) CreateRule(rule *core.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	_, err = srs.sqlite.WriteDB.Exec(
		`INSERT INTO rules (id, name, attack_type, conditions, conclusion, cf, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Name, rule.AttackType, string(conditionsJSON),
		rule.Conclusion, rule.CF, rule.Enabled, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// UpdateRule validates and replaces an existing rule.
func (srs *SQLiteRuleStorage) UpdateRule(id string, rule *core.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	result, err := srs.sqlite.WriteDB.Exec(
		`UPDATE rules SET name = ?, attack_type = ?, conditions = ?, conclusion = ?,
		 cf = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		rule.Name, rule.AttackType, string(conditionsJSON), rule.Conclusion,
		rule.CF, rule.Enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRule removes a rule by ID.
func (srs *SQLiteRuleStorage) DeleteRule(id string) error {
	result, err := srs.sqlite.WriteDB.Exec(`DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// SetRuleEnabled toggles a rule's membership in the active rule base.
func (srs *SQLiteRuleStorage) SetRuleEnabled(id string, enabled bool) error {
	result, err := srs.sqlite.WriteDB.Exec(
		`UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check toggle result: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// GetRuleCount returns the total number of stored rules.
func (srs *SQLiteRuleStorage) GetRuleCount() (int64, error) {
	var count int64
	if err := srs.sqlite.ReadDB.QueryRow(`SELECT COUNT(*) FROM rules`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint violations in the error text;
	// there is no exported error type to match on.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
