package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	roleRegex    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]{0,63}$`)
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// ValidateRole checks that a role name is a single token usable in
// tokens, queries and message subjects
func ValidateRole(role string) error {
	if !roleRegex.MatchString(role) {
		return fmt.Errorf("invalid role name: %q", role)
	}
	return nil
}

// SanitizeString strips control characters (keeping tabs and newlines)
// and surrounding whitespace from free text such as comments
func SanitizeString(s string) string {
	return strings.TrimSpace(controlRegex.ReplaceAllString(s, ""))
}

// SanitizeOptional applies SanitizeString to an optional value; empty results become nil
func SanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	clean := SanitizeString(*s)
	if clean == "" {
		return nil
	}
	return &clean
}
