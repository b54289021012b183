package core

import (
	"net/url"
	"regexp"
	"strings"
)

var whiteSpaceRegex = regexp.MustCompile(`\s`)

// sanitizeIdentifier normalizes a caller-supplied identifier used to
// namespace persisted key files: URL-unescaped, trimmed, lower-cased, and
// with internal whitespace collapsed to underscores. Mirrors the
// teacher's sanitizeIdentifier used for its per-context key file naming.
func sanitizeIdentifier(id string) string {
	unescaped, err := url.QueryUnescape(id)
	if err != nil {
		unescaped = id
	}
	trimmed := strings.TrimSpace(unescaped)
	lowered := strings.ToLower(trimmed)
	return whiteSpaceRegex.ReplaceAllLiteralString(lowered, "_")
}
