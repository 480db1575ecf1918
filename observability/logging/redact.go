package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys the marketplace logs in clear. Anything else passed through MaskField
// is replaced by RedactedValue.
var clearKeys = map[string]struct{}{
	"component": {},
	"operation": {},
	"outcome":   {},
	"requestid": {},
	"listing":   {},
	"caller":    {},
	"datadir":   {},
	"endpoint":  {},
}

// IsAllowlisted reports whether key may be logged without redaction. Keys are
// compared case-insensitively.
func IsAllowlisted(key string) bool {
	_, ok := clearKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns a slog.Attr that redacts value unless key is allowlisted.
// Empty values pass through so missing configuration stays visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskHeaders logs the names of key=value,key=value pairs and redacts every
// value, e.g. "authorization=[REDACTED],tenant=[REDACTED]".
func MaskHeaders(key, raw string) slog.Attr {
	pairs := strings.Split(raw, ",")
	masked := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		name, _, found := strings.Cut(strings.TrimSpace(pair), "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		masked = append(masked, name+"="+RedactedValue)
	}
	return slog.String(key, strings.Join(masked, ","))
}
