package logging

import (
	"log/slog"
	"regexp"
)

// uuidPattern matches UUID-shaped substrings. The CSRF token extracted
// during discovery is a UUID, and it is the one secret this process
// handles; masking every UUID-shaped value is cheap and catches the token
// wherever it is interpolated.
var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// RedactTokens masks UUID-shaped substrings in a string, keeping the first
// eight characters so related log lines remain correlatable.
func RedactTokens(s string) string {
	return uuidPattern.ReplaceAllStringFunc(s, func(match string) string {
		return match[:8] + "-****"
	})
}

// redactTokenAttr is the slog ReplaceAttr hook applying RedactTokens to
// string attribute values.
func redactTokenAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		if redacted := RedactTokens(a.Value.String()); redacted != a.Value.String() {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}
