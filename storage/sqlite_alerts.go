package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"argus/core"

	"go.uber.org/zap"
)

// SQLiteAlertStorage handles alert persistence in SQLite.
type SQLiteAlertStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteAlertStorage creates a new SQLite alert storage handler.
func NewSQLiteAlertStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteAlertStorage {
	return &SQLiteAlertStorage{sqlite: sqlite, logger: logger}
}

// InsertAlert persists a new alert.
func (sas *SQLiteAlertStorage) InsertAlert(alert *core.Alert) error {
	observationsJSON, err := json.Marshal(alert.Observations)
	if err != nil {
		return fmt.Errorf("failed to marshal observations: %w", err)
	}

	_, err = sas.sqlite.WriteDB.Exec(
		`INSERT INTO alerts (alert_id, timestamp, source_ip, destination_ip, alert_type, severity, observations, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.AlertID, alert.Timestamp, alert.SourceIP, alert.DestinationIP,
		alert.AlertType, alert.Severity, string(observationsJSON), alert.Status)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by ID.
func (sas *SQLiteAlertStorage) GetAlert(alertID string) (*core.Alert, error) {
	row := sas.sqlite.ReadDB.QueryRow(
		`SELECT alert_id, timestamp, source_ip, destination_ip, alert_type, severity, observations, status
		 FROM alerts WHERE alert_id = ?`, alertID)

	alert, err := scanAlert(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	return alert, err
}

// GetAlerts retrieves alerts newest first, optionally filtered by status.
func (sas *SQLiteAlertStorage) GetAlerts(status string, limit int) ([]*core.Alert, error) {
	query := `SELECT alert_id, timestamp, source_ip, destination_ip, alert_type, severity, observations, status
	          FROM alerts`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := sas.sqlite.ReadDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*core.Alert
	for rows.Next() {
		alert, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// UpdateAlertStatus moves an alert between new/processed/ignored.
func (sas *SQLiteAlertStorage) UpdateAlertStatus(alertID, status string) error {
	result, err := sas.sqlite.WriteDB.Exec(
		`UPDATE alerts SET status = ? WHERE alert_id = ?`, status, alertID)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func scanAlert(scan func(dest ...interface{}) error) (*core.Alert, error) {
	var (
		alert            core.Alert
		sourceIP         sql.NullString
		destinationIP    sql.NullString
		observationsJSON string
	)
	if err := scan(&alert.AlertID, &alert.Timestamp, &sourceIP, &destinationIP,
		&alert.AlertType, &alert.Severity, &observationsJSON, &alert.Status); err != nil {
		return nil, err
	}
	alert.SourceIP = sourceIP.String
	alert.DestinationIP = destinationIP.String

	alert.Observations = make(map[string]interface{})
	if observationsJSON != "" {
		if err := json.Unmarshal([]byte(observationsJSON), &alert.Observations); err != nil {
			return nil, fmt.Errorf("alert %s: malformed observations: %w", alert.AlertID, err)
		}
	}
	return &alert, nil
}
