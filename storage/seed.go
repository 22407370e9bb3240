package storage

import (
	"errors"
	"fmt"

	"argus/core"

	"go.uber.org/zap"
)

// seedRule is the authoring shape for the built-in rule base.
type seedRule struct {
	id         string
	name       string
	attackType string
	conditions []core.Fact
	conclusion string
	cf         float64
}

// seedRules is the canonical starter rule base covering the built-in attack
// families. Every entry must pass core.NewRule validation; TestSeedRulesValid
// fails the build otherwise.
var seedRules = []seedRule{
	// Brute force
	{"bf-high-failed-short-window", "High Failed Attempts with Short Window", "brute_force",
		[]core.Fact{"high_failed_attempts", "short_timespan"}, "brute_force_attack", 0.85},
	{"bf-very-high-failed-rapid", "Very High Failed Attempts Rapid", "brute_force",
		[]core.Fact{"very_high_failed_attempts", "very_short_timespan"}, "brute_force_attack", 0.92},
	{"bf-admin-targeted", "Admin Account Targeted Brute Force", "brute_force",
		[]core.Fact{"high_failed_attempts", "admin_target"}, "brute_force_attack", 0.88},
	{"bf-ssh-pattern", "SSH Brute Force Pattern", "brute_force",
		[]core.Fact{"ssh_service", "high_failed_attempts", "short_timespan"}, "brute_force_attack", 0.90},
	{"bf-credential-stuffing", "Credential Stuffing Detected", "brute_force",
		[]core.Fact{"high_failed_attempts", "repeat_offender"}, "credential_stuffing", 0.87},

	// DDoS
	{"ddos-volumetric", "High Traffic Volumetric Attack", "ddos",
		[]core.Fact{"high_traffic_rate", "high_connections"}, "ddos_attack", 0.83},
	{"ddos-severe", "Very High Traffic Severe DDoS", "ddos",
		[]core.Fact{"very_high_traffic_rate", "very_high_connections"}, "ddos_attack", 0.95},
	{"ddos-bandwidth-exhaustion", "Bandwidth Exhaustion Attack", "ddos",
		[]core.Fact{"high_bandwidth", "high_traffic_rate"}, "ddos_attack", 0.88},
	{"ddos-external-flood", "External Flood Attack", "ddos",
		[]core.Fact{"external_source", "high_traffic_rate", "high_connections"}, "ddos_attack", 0.90},
	{"ddos-extreme-traffic", "Extreme Traffic Attack", "ddos",
		[]core.Fact{"extreme_traffic_rate"}, "ddos_attack", 0.93},

	// APT
	{"apt-sustained-high-value", "Sustained High Value Target Attack", "unauthorized_access",
		[]core.Fact{"sustained_attack", "high_value_target"}, "apt_attack", 0.78},

	// SQL injection
	{"sqli-detected", "SQL Injection Detected", "sql_injection",
		[]core.Fact{"sql_injection_pattern"}, "sql_injection_attack", 0.90},
	{"sqli-high-severity", "High Severity SQL Injection", "sql_injection",
		[]core.Fact{"sql_injection_pattern", "elevated_severity"}, "sql_injection_attack", 0.95},
	{"sqli-web-service", "Web Service SQL Injection", "sql_injection",
		[]core.Fact{"sql_injection_pattern", "web_service"}, "sql_injection_attack", 0.93},

	// XSS
	{"xss-detected", "XSS Pattern Detected", "xss",
		[]core.Fact{"xss_pattern"}, "xss_attack", 0.88},
	{"xss-high-severity", "High Severity XSS", "xss",
		[]core.Fact{"xss_pattern", "elevated_severity"}, "xss_attack", 0.93},
	{"xss-web-service", "Web Service XSS Attack", "xss",
		[]core.Fact{"xss_pattern", "web_service"}, "xss_attack", 0.91},

	// Port scan
	{"portscan-detected", "Port Scan Detected", "port_scan",
		[]core.Fact{"port_scan_pattern"}, "port_scan_attack", 0.85},
	{"portscan-extensive", "Extensive Port Scan", "port_scan",
		[]core.Fact{"port_scan_pattern", "high_connections"}, "port_scan_attack", 0.92},
	{"portscan-external", "External Port Scan", "port_scan",
		[]core.Fact{"port_scan_pattern", "external_source"}, "port_scan_attack", 0.89},

	// Malware
	{"malware-detected", "Malware Detected", "malware",
		[]core.Fact{"malware_pattern"}, "malware_attack", 0.87},
	{"malware-high-severity", "High Severity Malware", "malware",
		[]core.Fact{"malware_pattern", "elevated_severity"}, "malware_attack", 0.94},
	{"malware-data-access", "Malware with Data Access", "malware",
		[]core.Fact{"malware_pattern", "suspicious_file_access"}, "malware_attack", 0.91},

	// Phishing
	{"phishing-detected", "Phishing Attempt Detected", "phishing",
		[]core.Fact{"phishing_pattern"}, "phishing_attack", 0.86},
	{"phishing-targeted", "Targeted Phishing", "phishing",
		[]core.Fact{"phishing_pattern", "high_value_target"}, "phishing_attack", 0.92},
	{"phishing-email-service", "Email Service Phishing", "phishing",
		[]core.Fact{"phishing_pattern", "email_service"}, "phishing_attack", 0.90},

	// Privilege escalation
	{"privesc-detected", "Privilege Escalation Detected", "privilege_escalation",
		[]core.Fact{"privilege_escalation_pattern"}, "privilege_escalation_attack", 0.88},
	{"privesc-admin-account", "Admin Account Escalation", "privilege_escalation",
		[]core.Fact{"privilege_escalation_pattern", "admin_target"}, "privilege_escalation_attack", 0.95},
	{"privesc-internal", "Internal Privilege Escalation", "privilege_escalation",
		[]core.Fact{"privilege_escalation_pattern", "internal_source"}, "privilege_escalation_attack", 0.91},

	// Data exfiltration
	{"exfil-detected", "Data Exfiltration Detected", "data_exfiltration",
		[]core.Fact{"data_exfiltration_pattern"}, "data_exfiltration_attack", 0.89},
	{"exfil-high-volume", "High Volume Data Transfer", "data_exfiltration",
		[]core.Fact{"data_exfiltration_pattern", "high_bandwidth"}, "data_exfiltration_attack", 0.93},
	{"exfil-external", "External Data Exfiltration", "data_exfiltration",
		[]core.Fact{"data_exfiltration_pattern", "external_target"}, "data_exfiltration_attack", 0.96},
	{"exfil-file-transfer", "Suspicious File Transfer", "data_exfiltration",
		[]core.Fact{"suspicious_file_access", "external_target", "elevated_severity"}, "data_exfiltration_attack", 0.90},
}

// SeedRules installs the built-in rule base. Existing rules with the same
// ID are left untouched, so local edits survive restarts. Returns the
// number of rules created.
func SeedRules(ruleStorage *SQLiteRuleStorage, logger *zap.SugaredLogger) (int, error) {
	created := 0
	for _, sr := range seedRules {
		rule, err := core.NewRule(sr.id, sr.conditions, sr.conclusion, sr.cf, sr.name)
		if err != nil {
			return created, fmt.Errorf("invalid seed rule %s: %w", sr.id, err)
		}
		rule.AttackType = sr.attackType

		if err := ruleStorage.CreateRule(rule); err != nil {
			if errors.Is(err, ErrRuleExists) {
				continue
			}
			return created, fmt.Errorf("failed to seed rule %s: %w", sr.id, err)
		}
		created++
	}
	if created > 0 {
		logger.Infow("Seeded rule base", "created", created, "total", len(seedRules))
	}
	return created, nil
}
