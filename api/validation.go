package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// observationsSchema types the known observation keys. Unknown keys are
// allowed (the fact vocabulary is an open extension point) but a known key
// with the wrong type is rejected here rather than silently defaulting to a
// neutral value inside the extractor.
const observationsSchema = `{
	"type": "object",
	"properties": {
		"failed_attempts":         {"type": "number", "minimum": 0},
		"time_window":             {"type": "number", "minimum": 0},
		"requests_per_second":     {"type": "number", "minimum": 0},
		"bandwidth_mbps":          {"type": "number", "minimum": 0},
		"connection_count":        {"type": "number", "minimum": 0},
		"attack_duration_seconds": {"type": "number", "minimum": 0},
		"file_access_count":       {"type": "number", "minimum": 0},
		"target_service":          {"type": "string", "maxLength": 512},
		"target_username":         {"type": "string", "maxLength": 128},
		"protocol":                {"type": "string", "maxLength": 64},
		"attack_type":             {"type": "string", "maxLength": 64},
		"source_country":          {"type": "string", "maxLength": 8},
		"is_repeat_offender":      {"type": "boolean"},
		"sensitive_data_accessed": {"type": "boolean"}
	},
	"additionalProperties": true
}`

var observationsSchemaLoader = gojsonschema.NewStringLoader(observationsSchema)

// ValidateObservations checks an alert observation map against the schema.
// A nil map is valid (all observations default to neutral values).
func ValidateObservations(observations map[string]interface{}) error {
	if observations == nil {
		return nil
	}

	doc, err := json.Marshal(observations)
	if err != nil {
		return fmt.Errorf("observations are not serializable: %w", err)
	}

	result, err := gojsonschema.Validate(observationsSchemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
