package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrDatasetNotFound = fmt.Errorf("%w: dataset", ErrNotFound)
	ErrReportNotFound  = fmt.Errorf("%w: report", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)

	// Input errors
	ErrMissingColumn = errors.New("expected column is absent")
	ErrEmptyDataset  = errors.New("dataset has no rows")
	ErrNoHeaders     = errors.New("dataset has no header row")

	// Computation errors, one exposure at a time
	ErrZeroDenominator    = errors.New("division by zero")
	ErrChiSquareUndefined = errors.New("chi-square test undefined: zero expected frequency")
	ErrNoExposureLevels   = errors.New("exposure column has no eat/not eat values")
	ErrMissingOutcome     = errors.New("outcome column lacks a Case or Control category")
)

// NewMissingColumnError reports which column was expected and absent
func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w: %q", ErrMissingColumn, column)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsMissingColumnError(err error) bool {
	return errors.Is(err, ErrMissingColumn)
}

// IsComputationError reports errors that make a single exposure's measures undefined
func IsComputationError(err error) bool {
	return errors.Is(err, ErrZeroDenominator) ||
		errors.Is(err, ErrChiSquareUndefined) ||
		errors.Is(err, ErrNoExposureLevels) ||
		errors.Is(err, ErrMissingOutcome)
}
