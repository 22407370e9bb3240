// Package extract converts raw alerts into symbolic fact sets.
//
// Extraction is deterministic, side-effect free and total: missing
// observations default to neutral values and simply fail to derive facts,
// malformed IPs degrade to an "external" classification, and no input
// produces an error.
package extract

import (
	"net"
	"strings"

	"argus/core"
)

// Numeric thresholds for tiered fact derivation. Tiers are additive: an
// observation that clears a higher tier also emits every lower tier's fact.
const (
	failedAttemptsHigh     = 5
	failedAttemptsVeryHigh = 10
	failedAttemptsExtreme  = 20

	// Time windows are lower-is-worse: a short window is more anomalous.
	timeWindowShort     = 300 // seconds
	timeWindowVeryShort = 120

	requestsPerSecondHigh     = 100
	requestsPerSecondVeryHigh = 500
	requestsPerSecondExtreme  = 1000

	bandwidthHighMbps     = 100
	bandwidthVeryHighMbps = 500

	connectionCountHigh     = 100
	connectionCountVeryHigh = 500

	attackDurationSustained = 3600 // seconds
	attackDurationProlonged = 600

	fileAccessSuspicious = 50
)

// Keyword lists for categorical pattern facts. Matching is substring
// containment over the lower-cased target service string.
var (
	sqlInjectionPatterns = []string{
		"'", `"`, "--", ";", "union", "select", "drop", "insert", "update",
		"delete", "exec", "execute", "script", "<", ">", "or 1=1", "or 1 = 1",
		"' or '", `" or "`, "xp_", "sp_", "concat", "char(", "declare",
	}
	xssPatterns = []string{
		"<script", "javascript:", "onerror=", "onload=", "onclick=",
		"<iframe", "<img", "alert(", "document.cookie", "eval(",
	}
	portScanPatterns = []string{"port", "scan", "nmap"}
	malwarePatterns  = []string{
		".exe", ".dll", ".bat", ".ps1", ".vbs", "payload",
		"trojan", "ransomware", "virus", "worm", "backdoor",
	}
	phishingPatterns = []string{
		"login", "verify", "account", "suspended", "confirm",
		"password", "urgent", "click here", "update payment",
	}
	privEscPatterns = []string{
		"sudo", "su -", "runas", "admin", "root", "privilege",
		"escalate", "suid", "chmod", "chown",
	}
	exfilPatterns = []string{
		"download", "export", "backup", "copy", "transfer",
		"ftp", "scp", "rsync", "curl", "wget",
	}

	remoteAccessServices = map[string]bool{"ssh": true, "rdp": true, "telnet": true}
	webServices          = map[string]bool{"http": true, "https": true}
	fileTransferServices = map[string]bool{"ftp": true, "sftp": true}
	emailServices        = map[string]bool{"smtp": true, "pop3": true, "imap": true}

	adminUsernames        = map[string]bool{"admin": true, "root": true, "administrator": true}
	lowPrivilegeUsernames = map[string]bool{"guest": true, "test": true, "demo": true}

	highRiskCountries = map[string]bool{"cn": true, "ru": true, "kp": true}
)

// Facts derives the symbolic fact set for an alert. Each category of facts
// is computed independently and unioned; a second pass then derives compound
// facts from the union. The compound pass is applied exactly once and never
// re-triggers itself.
func Facts(alert *core.Alert) core.FactSet {
	facts := core.NewFactSet()
	facts.Union(numericFacts(alert))
	facts.Union(categoricalFacts(alert))
	facts.Union(ipFacts(alert))
	facts.Union(severityFacts(alert))
	facts.Union(temporalFacts(alert))
	facts.Union(compoundFacts(facts))
	return facts
}

func numericFacts(alert *core.Alert) core.FactSet {
	facts := core.NewFactSet()

	failedAttempts := alert.ObservationNumber("failed_attempts")
	switch {
	case failedAttempts >= failedAttemptsExtreme:
		facts.Add("extreme_failed_attempts")
		facts.Add("very_high_failed_attempts")
		facts.Add("high_failed_attempts")
	case failedAttempts >= failedAttemptsVeryHigh:
		facts.Add("very_high_failed_attempts")
		facts.Add("high_failed_attempts")
	case failedAttempts >= failedAttemptsHigh:
		facts.Add("high_failed_attempts")
	}

	// An absent window must not read as zero seconds.
	if alert.HasObservation("time_window") {
		timeWindow := alert.ObservationNumber("time_window")
		switch {
		case timeWindow <= timeWindowVeryShort:
			facts.Add("very_short_timespan")
			facts.Add("short_timespan")
		case timeWindow <= timeWindowShort:
			facts.Add("short_timespan")
		}
	}

	rps := alert.ObservationNumber("requests_per_second")
	switch {
	case rps >= requestsPerSecondExtreme:
		facts.Add("extreme_traffic_rate")
		facts.Add("very_high_traffic_rate")
		facts.Add("high_traffic_rate")
	case rps >= requestsPerSecondVeryHigh:
		facts.Add("very_high_traffic_rate")
		facts.Add("high_traffic_rate")
	case rps >= requestsPerSecondHigh:
		facts.Add("high_traffic_rate")
	}

	bandwidth := alert.ObservationNumber("bandwidth_mbps")
	switch {
	case bandwidth >= bandwidthVeryHighMbps:
		facts.Add("very_high_bandwidth")
		facts.Add("high_bandwidth")
	case bandwidth >= bandwidthHighMbps:
		facts.Add("high_bandwidth")
	}

	connections := alert.ObservationNumber("connection_count")
	switch {
	case connections >= connectionCountVeryHigh:
		facts.Add("very_high_connections")
		facts.Add("high_connections")
	case connections >= connectionCountHigh:
		facts.Add("high_connections")
	}

	return facts
}

func categoricalFacts(alert *core.Alert) core.FactSet {
	facts := core.NewFactSet()

	service := strings.ToLower(alert.ObservationString("target_service"))
	if service != "" {
		facts.Add(service + "_service")

		if containsAny(service, sqlInjectionPatterns) {
			facts.Add("sql_injection_pattern")
			facts.Add("web_attack")
		}
		if containsAny(service, xssPatterns) {
			facts.Add("xss_pattern")
			facts.Add("web_attack")
		}
		if containsAny(service, portScanPatterns) {
			facts.Add("port_scan_pattern")
		}
		if containsAny(service, malwarePatterns) {
			facts.Add("malware_pattern")
		}
		if containsAny(service, phishingPatterns) {
			facts.Add("phishing_pattern")
		}
		if containsAny(service, privEscPatterns) {
			facts.Add("privilege_escalation_pattern")
		}
		if containsAny(service, exfilPatterns) {
			facts.Add("data_exfiltration_pattern")
		}

		switch {
		case remoteAccessServices[service]:
			facts.Add("remote_access_service")
		case webServices[service]:
			facts.Add("web_service")
		case fileTransferServices[service]:
			facts.Add("file_transfer_service")
		case emailServices[service]:
			facts.Add("email_service")
		}
	}

	username := strings.ToLower(alert.ObservationString("target_username"))
	if username != "" {
		switch {
		case adminUsernames[username]:
			facts.Add("admin_target")
			facts.Add("high_value_target")
		case lowPrivilegeUsernames[username]:
			facts.Add("low_privilege_target")
		}
	}

	if protocol := strings.ToLower(alert.ObservationString("protocol")); protocol != "" {
		facts.Add(protocol + "_protocol")
	}

	if attackType := strings.ToLower(alert.ObservationString("attack_type")); attackType != "" {
		facts.Add("suspected_" + attackType)
	}

	if country := strings.ToLower(alert.ObservationString("source_country")); country != "" {
		facts.Add("source_country_" + country)
		if highRiskCountries[country] {
			facts.Add("high_risk_country")
		}
	}

	return facts
}

func ipFacts(alert *core.Alert) core.FactSet {
	facts := core.NewFactSet()

	if alert.SourceIP != "" {
		facts.Add("has_source_ip")
		if isPrivateIP(alert.SourceIP) {
			facts.Add("internal_source")
		} else {
			facts.Add("external_source")
		}
	}

	if alert.DestinationIP != "" {
		facts.Add("has_destination_ip")
		if isPrivateIP(alert.DestinationIP) {
			facts.Add("internal_target")
		} else {
			facts.Add("external_target")
		}
	}

	return facts
}

func severityFacts(alert *core.Alert) core.FactSet {
	facts := core.NewFactSet()

	severity := strings.ToLower(alert.Severity)
	if severity == "" {
		severity = "medium"
	}
	facts.Add(severity + "_severity")

	if severity == "high" || severity == "critical" {
		facts.Add("elevated_severity")
	}

	return facts
}

func temporalFacts(alert *core.Alert) core.FactSet {
	facts := core.NewFactSet()

	// Duration buckets are mutually exclusive, largest wins.
	duration := alert.ObservationNumber("attack_duration_seconds")
	switch {
	case duration > attackDurationSustained:
		facts.Add("sustained_attack")
	case duration > attackDurationProlonged:
		facts.Add("prolonged_attack")
	case duration > 0:
		facts.Add("brief_attack")
	}

	if alert.ObservationBool("is_repeat_offender") {
		facts.Add("repeat_offender")
		facts.Add("known_attacker")
	}

	if alert.ObservationNumber("file_access_count") > fileAccessSuspicious {
		facts.Add("suspicious_file_access")
	}

	if alert.ObservationBool("sensitive_data_accessed") {
		facts.Add("sensitive_data_access")
	}

	return facts
}

// compoundRules is the fixed table for the second derivation pass: when both
// antecedent facts are present, the compound fact is emitted. Compound facts
// never feed back into this table.
var compoundRules = []struct {
	a, b     core.Fact
	compound core.Fact
}{
	{"high_failed_attempts", "short_timespan", "rapid_brute_force_pattern"},
	{"very_high_failed_attempts", "very_short_timespan", "aggressive_brute_force_pattern"},
	{"admin_target", "high_failed_attempts", "targeted_admin_attack"},
	{"ssh_service", "high_failed_attempts", "ssh_brute_force_pattern"},
	{"high_traffic_rate", "high_connections", "volumetric_attack_pattern"},
	{"very_high_traffic_rate", "very_high_connections", "severe_ddos_pattern"},
	{"high_bandwidth", "high_traffic_rate", "bandwidth_exhaustion_pattern"},
	{"external_source", "high_traffic_rate", "external_flood_attack"},
	{"high_failed_attempts", "repeat_offender", "credential_stuffing_pattern"},
	{"sustained_attack", "high_value_target", "apt_pattern"},
}

func compoundFacts(facts core.FactSet) core.FactSet {
	derived := core.NewFactSet()
	for _, cr := range compoundRules {
		if facts.Has(cr.a) && facts.Has(cr.b) {
			derived.Add(cr.compound)
		}
	}
	return derived
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// isPrivateIP classifies RFC1918 and loopback addresses as internal.
// Malformed strings fail open to external so extraction never errors.
func isPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback()
}
