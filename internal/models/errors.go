package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrIntegrity ErrorType = iota
	ErrMissingSource
	ErrPermission
	ErrInvalidFormula
	ErrFetch
	ErrExtract
	ErrPublish
	ErrSigning
	ErrInvalidConfig
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrIntegrity:
		return "Integrity"
	case ErrMissingSource:
		return "MissingSource"
	case ErrPermission:
		return "Permission"
	case ErrInvalidFormula:
		return "InvalidFormula"
	case ErrFetch:
		return "Fetch"
	case ErrExtract:
		return "Extract"
	case ErrPublish:
		return "Publish"
	case ErrSigning:
		return "Signing"
	case ErrInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// Sentinel errors for the failures an install can end with.
var (
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrSourceNotFound        = errors.New("file not found in archive")
	ErrInstallDirNotWritable = errors.New("install directory not writable")
)

// ReleaseError represents an error while generating or installing a formula
type ReleaseError struct {
	Type    ErrorType
	Formula string
	Err     error
}

// Error implements the error interface
func (e *ReleaseError) Error() string {
	if e.Formula != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Formula, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// NewError wraps err in a ReleaseError of the given type
func NewError(t ErrorType, formula string, err error) *ReleaseError {
	return &ReleaseError{Type: t, Formula: formula, Err: err}
}

// IsType reports whether err carries a ReleaseError of type t anywhere in its chain
func IsType(err error, t ErrorType) bool {
	var re *ReleaseError
	for err != nil {
		if !errors.As(err, &re) {
			return false
		}
		if re.Type == t {
			return true
		}
		err = re.Err
	}
	return false
}
