package core

import (
	"time"

	"github.com/google/uuid"
)

// Alert status values
const (
	AlertStatusNew       = "new"
	AlertStatusProcessed = "processed"
	AlertStatusIgnored   = "ignored"
)

// Alert represents a raw security alert awaiting triage.
//
// Observations holds the free-form key/value map the fact extractor reads
// (failed_attempts, time_window, requests_per_second, target_service, ...).
// Missing keys default to neutral values during extraction, so an Alert with
// an empty map is still valid input.
type Alert struct {
	AlertID       string                 `json:"alert_id" example:"alert-123"`
	Timestamp     time.Time              `json:"timestamp" example:"2023-10-31T12:00:00Z"`
	SourceIP      string                 `json:"source_ip,omitempty" example:"192.168.1.100"`
	DestinationIP string                 `json:"destination_ip,omitempty" example:"10.0.0.1"`
	AlertType     string                 `json:"alert_type" example:"unknown"`
	Severity      string                 `json:"severity" example:"medium"`
	Observations  map[string]interface{} `json:"observations"`
	Status        string                 `json:"status" example:"new"`
}

// NewAlert creates a new Alert with a generated UUID and defaulted fields.
func NewAlert() *Alert {
	return &Alert{
		AlertID:      uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		AlertType:    "unknown",
		Severity:     "medium",
		Observations: make(map[string]interface{}),
		Status:       AlertStatusNew,
	}
}

// ObservationNumber reads a numeric observation, tolerating the types a JSON
// decode or form submission can produce. Missing or non-numeric values
// default to zero so extraction never fails on sloppy input.
func (a *Alert) ObservationNumber(key string) float64 {
	v, ok := a.Observations[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// HasObservation reports whether the observation key is present at all.
// Extraction distinguishes "absent" from "zero" for observations where zero
// would otherwise satisfy a lower-is-worse threshold (time_window).
func (a *Alert) HasObservation(key string) bool {
	_, ok := a.Observations[key]
	return ok
}

// ObservationString reads a string observation, defaulting to "".
func (a *Alert) ObservationString(key string) string {
	if s, ok := a.Observations[key].(string); ok {
		return s
	}
	return ""
}

// ObservationBool reads a boolean observation, defaulting to false.
func (a *Alert) ObservationBool(key string) bool {
	if b, ok := a.Observations[key].(bool); ok {
		return b
	}
	return false
}
