package scrub

import "regexp"

// pattern pairs a compiled regex with the redaction kind reported inside
// "[REDACTED:<kind>]".
type pattern struct {
	kind string
	re   *regexp.Regexp
}

// defaultCatalogue returns the fixed regex catalogue: provider-signature API
// keys, bearer tokens, emails, and common PII shapes. Order matters — more
// specific provider signatures run before the generic bearer-token pattern
// so a "Bearer sk-ant-..." string reports the provider kind.
func defaultCatalogue() []pattern {
	return []pattern{
		{kind: "anthropic-api-key", re: regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`)},
		{kind: "openai-api-key", re: regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`)},
		{kind: "google-api-key", re: regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
		{kind: "aws-access-key", re: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
		{kind: "github-token", re: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)},
		{kind: "slack-token", re: regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`)},
		{kind: "bearer-token", re: regexp.MustCompile(`(?i)\bBearer\s+[a-zA-Z0-9._-]{10,}\b`)},
		{kind: "jwt", re: regexp.MustCompile(`\beyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\b`)},
		{kind: "email", re: regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)},
		{kind: "ssn", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{kind: "credit-card", re: regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
		{kind: "phone", re: regexp.MustCompile(`\b\+?1?[-. ]?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)},
	}
}
