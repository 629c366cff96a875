package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims surrounding whitespace and applies Unicode NFC so that
// visually identical names collide on the unique indexes.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// RequireName normalizes s and fails with KindValidation if it is blank.
func RequireName(field, s string) (string, error) {
	n := NormalizeName(s)
	if n == "" {
		return "", Validationf("%s is required", field)
	}
	return n, nil
}
