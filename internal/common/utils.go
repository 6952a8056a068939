package common

import "strings"

// NormalizeColumn maps an upstream field name to its output column name:
// surrounding whitespace trimmed, inner spaces replaced by underscores,
// lower-cased. "Last Modified utc" becomes "last_modified_utc".
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}
