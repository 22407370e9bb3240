package core

import "sort"

// Fact is a symbolic boolean observation derived from an alert, drawn from
// a fixed vocabulary of snake_case identifiers (e.g. "high_failed_attempts",
// "admin_target"). Facts are present-or-absent; there is no negation.
type Fact = string

// FactSet is an unordered set of unique facts. A fact set is derived once
// per alert and never mutated afterwards.
type FactSet map[Fact]struct{}

// NewFactSet creates a FactSet from the given facts.
func NewFactSet(facts ...Fact) FactSet {
	fs := make(FactSet, len(facts))
	for _, f := range facts {
		fs[f] = struct{}{}
	}
	return fs
}

// Add inserts a fact into the set.
func (fs FactSet) Add(f Fact) {
	fs[f] = struct{}{}
}

// Has reports whether the fact is present.
func (fs FactSet) Has(f Fact) bool {
	_, ok := fs[f]
	return ok
}

// Union inserts every fact of other into fs.
func (fs FactSet) Union(other FactSet) {
	for f := range other {
		fs[f] = struct{}{}
	}
}

// Sorted returns the facts in lexical order. Used wherever a fact set is
// serialized or displayed, so output is deterministic.
func (fs FactSet) Sorted() []Fact {
	out := make([]Fact, 0, len(fs))
	for f := range fs {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Missing returns the facts in required that are absent from fs, in lexical
// order. The result names exactly which conditions kept a rule from firing.
func (fs FactSet) Missing(required []Fact) []Fact {
	var missing []Fact
	for _, f := range required {
		if !fs.Has(f) {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}

// FactDescriptions maps every fact in the built-in vocabulary to a short
// human-readable description, used by the CLI and the explain endpoints.
// Facts projected from raw values ({protocol}_protocol, suspected_{type},
// source_country_{cc}, {severity}_severity, {service}_service) are open-ended
// and intentionally not enumerated here.
var FactDescriptions = map[Fact]string{
	"high_failed_attempts":         "Failed login attempts >= 5",
	"very_high_failed_attempts":    "Failed login attempts >= 10",
	"extreme_failed_attempts":      "Failed login attempts >= 20",
	"short_timespan":               "Attack window <= 5 minutes",
	"very_short_timespan":          "Attack window <= 2 minutes",
	"high_traffic_rate":            "Requests/second >= 100",
	"very_high_traffic_rate":       "Requests/second >= 500",
	"extreme_traffic_rate":         "Requests/second >= 1000",
	"high_bandwidth":               "Bandwidth usage >= 100 Mbps",
	"very_high_bandwidth":          "Bandwidth usage >= 500 Mbps",
	"high_connections":             "Active connections >= 100",
	"very_high_connections":        "Active connections >= 500",
	"remote_access_service":        "Remote access protocol targeted",
	"web_service":                  "Web service targeted",
	"file_transfer_service":        "File transfer service targeted",
	"email_service":                "Email service targeted",
	"admin_target":                 "Administrator account targeted",
	"high_value_target":            "High-value account targeted",
	"low_privilege_target":         "Low-privilege account targeted",
	"high_risk_country":            "Source country is high risk",
	"has_source_ip":                "Source IP identified",
	"has_destination_ip":           "Destination IP identified",
	"internal_source":              "Attack from internal IP",
	"external_source":              "Attack from external IP",
	"internal_target":              "Internal host targeted",
	"external_target":              "External host targeted",
	"elevated_severity":            "Alert severity is high or critical",
	"sustained_attack":             "Attack duration > 1 hour",
	"prolonged_attack":             "Attack duration > 10 minutes",
	"brief_attack":                 "Short-lived attack activity",
	"repeat_offender":              "Known repeat attacker",
	"known_attacker":               "Attacker seen before",
	"suspicious_file_access":       "Excessive file access detected",
	"sensitive_data_access":        "Sensitive data accessed",
	"sql_injection_pattern":        "SQL injection syntax detected",
	"xss_pattern":                  "Cross-site scripting pattern detected",
	"web_attack":                   "Web application attack detected",
	"port_scan_pattern":            "Port scanning activity detected",
	"malware_pattern":              "Malware indicators detected",
	"phishing_pattern":             "Phishing attempt detected",
	"privilege_escalation_pattern": "Privilege escalation attempt detected",
	"data_exfiltration_pattern":    "Data exfiltration indicators detected",
	"rapid_brute_force_pattern":    "High login failures in short time",
	"aggressive_brute_force_pattern": "Very aggressive brute force attempt",
	"targeted_admin_attack":        "Brute force aimed at admin account",
	"ssh_brute_force_pattern":      "SSH-specific brute force",
	"volumetric_attack_pattern":    "High traffic and high connections",
	"severe_ddos_pattern":          "Extreme DDoS indicators",
	"bandwidth_exhaustion_pattern": "Bandwidth exhaustion attack",
	"external_flood_attack":        "External flood traffic",
	"credential_stuffing_pattern":  "Credential stuffing indicators",
	"apt_pattern":                  "Sustained attack on high-value target",
}

// DescribeFact returns the description for a fact, or a fallback for facts
// outside the built-in vocabulary.
func DescribeFact(f Fact) string {
	if desc, ok := FactDescriptions[f]; ok {
		return desc
	}
	return "No description"
}
