package guest

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is returned when an instance name falls outside the
// identifier grammar. Such names are never auto-corrected.
var ErrInvalidName = errors.New("invalid instance name")

var (
	nameRegexp    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	nonNameRegexp = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// ValidateName reports whether name may be used in composed command text.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w: %q (allowed: letters, digits, '_' and '-')", ErrInvalidName, name)
	}
	return nil
}

// IsValidName is the boolean form of ValidateName.
func IsValidName(name string) bool {
	return nameRegexp.MatchString(name)
}

// SanitizeName strips every character outside the identifier grammar.
// It is applied right before a name is interpolated into generated script
// text, independently of any earlier validation.
func SanitizeName(name string) string {
	return nonNameRegexp.ReplaceAllString(name, "")
}
