package storage

import "fmt"

// schemaStatements creates the tables and indexes. Statements are idempotent
// (IF NOT EXISTS) so Migrate can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		alert_id       TEXT PRIMARY KEY,
		timestamp      TIMESTAMP NOT NULL,
		source_ip      TEXT,
		destination_ip TEXT,
		alert_type     TEXT NOT NULL DEFAULT 'unknown',
		severity       TEXT NOT NULL DEFAULT 'medium',
		observations   TEXT NOT NULL DEFAULT '{}',
		status         TEXT NOT NULL DEFAULT 'new'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp)`,

	`CREATE TABLE IF NOT EXISTS rules (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		attack_type TEXT,
		conditions  TEXT NOT NULL,
		conclusion  TEXT,
		cf          REAL,
		enabled     INTEGER NOT NULL DEFAULT 1,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rules_enabled ON rules(enabled)`,
	`CREATE INDEX IF NOT EXISTS idx_rules_conclusion ON rules(conclusion)`,

	`CREATE TABLE IF NOT EXISTS incidents (
		incident_id    TEXT PRIMARY KEY,
		alert_id       TEXT NOT NULL REFERENCES alerts(alert_id) ON DELETE CASCADE,
		created_at     TIMESTAMP NOT NULL,
		top_conclusion TEXT,
		confidence     REAL NOT NULL DEFAULT 0,
		explanation    TEXT NOT NULL DEFAULT '',
		conclusions    TEXT NOT NULL DEFAULT '[]',
		facts          TEXT NOT NULL DEFAULT '[]',
		trace          TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_alert ON incidents(alert_id)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at)`,
}

// Migrate applies the schema.
func (s *SQLite) Migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := s.WriteDB.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
