package storage

import "errors"

// Storage error constants
var (
	// ErrRuleNotFound is returned when a rule is not found
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleExists is returned when creating a rule whose ID is taken
	ErrRuleExists = errors.New("rule already exists")

	// ErrAlertNotFound is returned when an alert is not found
	ErrAlertNotFound = errors.New("alert not found")

	// ErrIncidentNotFound is returned when an incident is not found
	ErrIncidentNotFound = errors.New("incident not found")
)
