package snippet

import (
	"regexp"

	"github.com/reedcms/reed/reederr"
)

// firewallRule is a named pattern that denies a field value outright.
type firewallRule struct {
	name    string
	pattern *regexp.Regexp
}

// firewallRules are checked in order; the first match wins. Patterns are
// deliberately conservative (prefer false positives on weird-but-legit
// input over false negatives on an attack payload) since this runs before
// sanitisation, not instead of it.
var firewallRules = []firewallRule{
	{"sql-injection", regexp.MustCompile(`(?i)(\bunion\s+select\b|\bor\s+1\s*=\s*1\b|;\s*drop\s+table\b|--\s*$|\bxp_cmdshell\b)`)},
	{"xss-script-tag", regexp.MustCompile(`(?i)<\s*script\b`)},
	{"xss-event-handler", regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus)\s*=`)},
	{"xss-javascript-url", regexp.MustCompile(`(?i)javascript:`)},
	{"path-traversal", regexp.MustCompile(`(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f)`)},
	{"command-injection", regexp.MustCompile(`(?i)(\$\(|` + "`" + `[^` + "`" + `]*` + "`" + `|;\s*(rm|cat|curl|wget)\s)`)},
	{"ldap-injection", regexp.MustCompile(`(\*\)|\(\||\(&)`)},
}

func validateFirewall(result *ValidationResult, field FieldDef, value interface{}) {
	s, ok := value.(string)
	if !ok {
		return
	}
	for _, rule := range firewallRules {
		if rule.pattern.MatchString(s) {
			result.add(field.Name, "potential_"+rule.name, reederr.ContentFirewall(rule.name, field.Name))
			return
		}
	}
}

// CheckFirewall runs the content-firewall patterns over a single raw string,
// independent of a schema field, for callers validating unstructured input
// (e.g. search query strings, URL path segments) rather than a snippet
// payload.
func CheckFirewall(s string) error {
	for _, rule := range firewallRules {
		if rule.pattern.MatchString(s) {
			return reederr.ContentFirewall(rule.name, "")
		}
	}
	return nil
}
