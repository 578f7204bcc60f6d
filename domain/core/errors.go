package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound           = errors.New("resource not found")
	ErrCheckpointNotFound = fmt.Errorf("%w: checkpoint", ErrNotFound)
	ErrColumnNotFound     = fmt.Errorf("%w: column", ErrNotFound)

	ErrEmptyDataset     = errors.New("dataset has no usable rows")
	ErrSingletonClass   = errors.New("class has fewer than two members")
	ErrLabelMismatch    = errors.New("label set does not match model")
	ErrInsufficientData = errors.New("insufficient data for split")
)

// NewColumnNotFoundError names the missing column and the file it was expected in
func NewColumnNotFoundError(column, source string) error {
	return fmt.Errorf("%w: %q in %s", ErrColumnNotFound, column, source)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
