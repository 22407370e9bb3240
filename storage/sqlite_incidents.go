package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"argus/core"

	"go.uber.org/zap"
)

// SQLiteIncidentStorage handles incident persistence in SQLite. The full
// trace is stored as a JSON blob so stored incidents can be re-explained
// without re-running inference.
type SQLiteIncidentStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteIncidentStorage creates a new SQLite incident storage handler.
func NewSQLiteIncidentStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteIncidentStorage {
	return &SQLiteIncidentStorage{sqlite: sqlite, logger: logger}
}

// InsertIncident persists an incident with its serialized trace.
func (sis *SQLiteIncidentStorage) InsertIncident(incident *core.Incident) error {
	conclusionsJSON, err := json.Marshal(incident.Conclusions)
	if err != nil {
		return fmt.Errorf("failed to marshal conclusions: %w", err)
	}
	factsJSON, err := json.Marshal(incident.Facts)
	if err != nil {
		return fmt.Errorf("failed to marshal facts: %w", err)
	}
	traceJSON := []byte("{}")
	if incident.Trace != nil {
		traceJSON, err = incident.Trace.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize trace: %w", err)
		}
	}

	_, err = sis.sqlite.WriteDB.Exec(
		`INSERT INTO incidents (incident_id, alert_id, created_at, top_conclusion, confidence, explanation, conclusions, facts, trace)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.IncidentID, incident.AlertID, incident.CreatedAt,
		incident.TopConclusion, incident.Confidence, incident.Explanation,
		string(conclusionsJSON), string(factsJSON), string(traceJSON))
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

// GetIncident retrieves an incident by ID, including its deserialized trace.
func (sis *SQLiteIncidentStorage) GetIncident(incidentID string) (*core.Incident, error) {
	row := sis.sqlite.ReadDB.QueryRow(
		`SELECT incident_id, alert_id, created_at, top_conclusion, confidence, explanation, conclusions, facts, trace
		 FROM incidents WHERE incident_id = ?`, incidentID)

	incident, err := scanIncident(row.Scan, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	return incident, err
}

// GetIncidents retrieves incidents newest first, without traces. Traces can
// be megabytes for large rule bases; listings do not need them.
func (sis *SQLiteIncidentStorage) GetIncidents(limit int) ([]*core.Incident, error) {
	rows, err := sis.sqlite.ReadDB.Query(
		`SELECT incident_id, alert_id, created_at, top_conclusion, confidence, explanation, conclusions, facts, '{}'
		 FROM incidents ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*core.Incident
	for rows.Next() {
		incident, err := scanIncident(rows.Scan, false)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}
	return incidents, nil
}

// GetIncidentCount returns the total number of stored incidents.
func (sis *SQLiteIncidentStorage) GetIncidentCount() (int64, error) {
	var count int64
	if err := sis.sqlite.ReadDB.QueryRow(`SELECT COUNT(*) FROM incidents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incidents: %w", err)
	}
	return count, nil
}

func scanIncident(scan func(dest ...interface{}) error, withTrace bool) (*core.Incident, error) {
	var (
		incident        core.Incident
		topConclusion   sql.NullString
		conclusionsJSON string
		factsJSON       string
		traceJSON       string
	)
	if err := scan(&incident.IncidentID, &incident.AlertID, &incident.CreatedAt,
		&topConclusion, &incident.Confidence, &incident.Explanation,
		&conclusionsJSON, &factsJSON, &traceJSON); err != nil {
		return nil, err
	}
	incident.TopConclusion = topConclusion.String

	if err := json.Unmarshal([]byte(conclusionsJSON), &incident.Conclusions); err != nil {
		return nil, fmt.Errorf("incident %s: malformed conclusions: %w", incident.IncidentID, err)
	}
	if err := json.Unmarshal([]byte(factsJSON), &incident.Facts); err != nil {
		return nil, fmt.Errorf("incident %s: malformed facts: %w", incident.IncidentID, err)
	}

	if withTrace {
		trace, err := core.TraceFromJSON([]byte(traceJSON))
		if err != nil {
			return nil, fmt.Errorf("incident %s: malformed trace: %w", incident.IncidentID, err)
		}
		incident.Trace = trace
	}
	return &incident, nil
}
