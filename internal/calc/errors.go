package calc

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedScope is returned when an adjustment declares line scope.
	// Line-scoped adjustments are an unimplemented feature, not a transient
	// condition; callers must surface this, never swallow it.
	ErrUnsupportedScope = errors.New("line-scoped adjustments are not supported")
	// ErrMissingAdjustmentAmount is returned when an adjustment carries
	// neither a rate nor an absolute amount.
	ErrMissingAdjustmentAmount = errors.New("adjustment has neither rate nor amount")
)

// InvalidLineInputError reports a line whose resolved state is inconsistent:
// non-positive quantity, negative price, a net/gross pair contradicting the
// tax rate beyond rounding tolerance, or a negative resulting total.
type InvalidLineInputError struct {
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *InvalidLineInputError) Error() string {
	return fmt.Sprintf("invalid line input at index %d: %s", e.Index, e.Reason)
}

// IsInvalidLineInput reports whether err is an InvalidLineInputError.
func IsInvalidLineInput(err error) bool {
	var target *InvalidLineInputError
	return errors.As(err, &target)
}
