package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactIdentity masks the user part of a chat identity such as
// "5551999998888@s.whatsapp.net", keeping the last four characters so log
// lines about the same person can still be correlated.
func RedactIdentity(id string) string {
	user, domain, hasDomain := strings.Cut(id, "@")
	if domain == "g.us" {
		return id
	}
	const keep = 4
	if len(user) > keep {
		user = strings.Repeat("*", len(user)-keep) + user[len(user)-keep:]
	}
	if !hasDomain {
		return user
	}
	return user + "@" + domain
}
