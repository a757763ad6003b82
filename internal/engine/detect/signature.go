package detect

import (
	"regexp"
	"strings"
)

// Placeholder substitutions run most-specific first so that broader
// patterns cannot eat parts of narrower ones (a UUID is four dash-joined
// hex runs; replacing digits first would destroy it).
var signatureSubs = []struct {
	re          *regexp.Regexp
	placeholder string
}{
	{regexp.MustCompile(`"[^"]*"`), "<str>"},
	{regexp.MustCompile(`'[^']*'`), "<str>"},
	{regexp.MustCompile(`[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}`), "<uuid>"},
	{regexp.MustCompile(`0x[a-fA-F0-9]+`), "<hex>"},
	{regexp.MustCompile(`\d+\.\d+\.\d+\.\d+(?::\d+)?`), "<ip>"},
	{regexp.MustCompile(`(?:/[\w.~-]+){2,}`), "<path>"},
	{regexp.MustCompile(`\d+`), "<num>"},
}

var signatureSpaceRe = regexp.MustCompile(`\s+`)

// Signature reduces a message to its template: variable parts become
// placeholders so occurrences of the same error shape compare equal.
func Signature(message string) string {
	sig := message
	for _, sub := range signatureSubs {
		sig = sub.re.ReplaceAllString(sig, sub.placeholder)
	}
	sig = strings.ToLower(sig)
	sig = signatureSpaceRe.ReplaceAllString(sig, " ")
	return strings.TrimSpace(sig)
}
