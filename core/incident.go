package core

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// RankedConclusion is one entry of an incident's ranked conclusion list.
type RankedConclusion struct {
	Conclusion string  `json:"conclusion"`
	CF         float64 `json:"cf"`
}

// Incident is the persisted outcome of triaging one alert: the ranked
// conclusions with their combined CFs, the top conclusion's CF as a scalar
// confidence score, a generated natural-language explanation, and the
// serialized trace for later why/why-not queries.
type Incident struct {
	IncidentID  string             `json:"incident_id"`
	AlertID     string             `json:"alert_id"`
	CreatedAt   time.Time          `json:"created_at"`
	Conclusions []RankedConclusion `json:"conclusions"`
	// TopConclusion is the highest-CF conclusion, excluding "unknown".
	// Empty when no rule fired.
	TopConclusion string  `json:"top_conclusion,omitempty"`
	Confidence    float64 `json:"confidence"`
	Explanation   string  `json:"explanation"`
	Facts         []Fact  `json:"facts"`
	Trace         *Trace  `json:"trace,omitempty"`
}

// NewIncident builds an incident from an inference result. Conclusions are
// ranked by CF descending, ties broken by name so ranking is deterministic.
// Conclusions named "unknown" are kept in the ranked list but never chosen
// as the top conclusion.
func NewIncident(alertID string, facts FactSet, conclusions map[string]float64, trace *Trace) *Incident {
	ranked := make([]RankedConclusion, 0, len(conclusions))
	for name, cf := range conclusions {
		ranked = append(ranked, RankedConclusion{Conclusion: name, CF: cf})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].CF != ranked[j].CF {
			return ranked[i].CF > ranked[j].CF
		}
		return ranked[i].Conclusion < ranked[j].Conclusion
	})

	inc := &Incident{
		IncidentID:  uuid.New().String(),
		AlertID:     alertID,
		CreatedAt:   time.Now().UTC(),
		Conclusions: ranked,
		Facts:       facts.Sorted(),
		Trace:       trace,
	}
	for _, rc := range ranked {
		if rc.Conclusion != UnknownConclusion {
			inc.TopConclusion = rc.Conclusion
			inc.Confidence = rc.CF
			break
		}
	}
	return inc
}
