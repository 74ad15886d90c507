package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinNameLength = 1
	MaxNameLength = 100
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.]+$`)

var (
	ErrNameTooShort     = errors.New("Name must be at least 1 character long.")
	ErrNameTooLong      = errors.New("Name must not exceed 100 characters.")
	ErrNameInvalidChars = errors.New("Name contains invalid characters.")
)

// Result is the outcome of a name check. Err is nil when Valid is true.
type Result struct {
	Valid bool
	Err   error
}

// Error is a client-side validation failure. It is never sent to the network.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sanitize trims leading and trailing whitespace.
func Sanitize(input string) string {
	return strings.TrimSpace(input)
}

// ValidateName checks a contact name. The first failing rule determines the error.
func ValidateName(name string) Result {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinNameLength {
		return Result{Err: ErrNameTooShort}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return Result{Err: ErrNameTooLong}
	}
	if !namePattern.MatchString(name) {
		return Result{Err: ErrNameInvalidChars}
	}
	return Result{Valid: true}
}

// Check sanitizes and validates name, returning the sanitized value or an *Error.
func Check(name string) (string, error) {
	clean := Sanitize(name)
	if res := ValidateName(clean); !res.Valid {
		return "", &Error{Field: "name", Err: res.Err}
	}
	return clean, nil
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
