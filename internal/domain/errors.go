package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that an upstream lookup returned nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState reports a violated operator precondition: mismatched
	// bbox or grid shape, a wrong raster kind, too few interpolation samples.
	ErrInvalidState = errors.New("invalid state")

	// ErrDegenerate reports that a statistic or geometry is undefined for the
	// given input, e.g. the range of an all-no-data grid.
	ErrDegenerate = errors.New("degenerate input")
)

// Error kind labels used in result messages and metrics.
const (
	KindNotFound     = "not_found"
	KindInvalidState = "invalid_state"
	KindDegenerate   = "degenerate"
	KindInternal     = "internal"
)

// ErrorKind maps an error onto one of the taxonomy labels.
// Errors outside the taxonomy are reported as "internal".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrDegenerate):
		return KindDegenerate
	default:
		return KindInternal
	}
}

func invalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func degeneratef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegenerate, fmt.Sprintf(format, args...))
}
