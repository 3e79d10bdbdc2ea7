package keywords

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyKeyword    = errors.New("keyword text cannot be empty")
	ErrNegativeCount   = errors.New("keyword count cannot be negative")
	ErrInvalidMacroKey = errors.New("macro key must contain only letters, digits or underscores")
	ErrEmptyExpansion  = errors.New("macro expansion cannot be empty")
	ErrMacroNotFound   = errors.New("macro not found")
)

// Error wraps a failed index operation. The cache is unchanged when it is returned.
type Error struct {
	Op  string // Operation name (e.g., "Record", "Rename")
	Err error  // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyKeyword) ||
		errors.Is(err, ErrNegativeCount) ||
		errors.Is(err, ErrInvalidMacroKey) ||
		errors.Is(err, ErrEmptyExpansion)
}

// IsNotFound reports whether err names a missing entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMacroNotFound)
}
