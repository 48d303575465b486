package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeEmail returns the canonical form used for storage and lookups:
// surrounding whitespace removed and letters lowercased. Lowercasing is a
// simple case mapping, so "ß" stays distinct from "ss".
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}
