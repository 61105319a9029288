package kinematics

import "errors"

var (
	// ErrInsufficientParameters is returned when fewer than three quantities are known.
	ErrInsufficientParameters = errors.New("at least three known quantities are required")

	// ErrUnsupportedCombination is returned when the known quantities do not form
	// one of the recognized triples. Supplying more than three values always
	// lands here.
	ErrUnsupportedCombination = errors.New("unsupported combination of known quantities")

	// ErrDegenerateMotion is returned when a formula chain produces a non-finite
	// value (division by zero, negative radicand).
	ErrDegenerateMotion = errors.New("known quantities describe degenerate motion")

	// ErrUnknownQuantity is returned for an unrecognized quantity name.
	ErrUnknownQuantity = errors.New("unknown quantity")

	// ErrInvalidValue is returned for a known value that is NaN or infinite.
	ErrInvalidValue = errors.New("invalid quantity value")
)

// Kind returns a stable machine-readable name for a resolver error,
// or "internal" for anything else.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientParameters):
		return "insufficient_parameters"
	case errors.Is(err, ErrUnsupportedCombination):
		return "unsupported_combination"
	case errors.Is(err, ErrDegenerateMotion):
		return "degenerate_motion"
	case errors.Is(err, ErrUnknownQuantity):
		return "unknown_quantity"
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	default:
		return "internal"
	}
}

// IsInputError reports whether err was caused by the caller's input rather
// than a failure inside the service.
func IsInputError(err error) bool {
	return Kind(err) != "internal"
}
