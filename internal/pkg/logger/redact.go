package logger

import "strings"

// RedactEmail masks the local part of an address, keeping its first two
// characters when it is longer than two: "john.doe@example.com" becomes
// "jo***@example.com" and "ab@example.com" becomes "***@example.com".
// Values that are not a single address become "***@***".
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
