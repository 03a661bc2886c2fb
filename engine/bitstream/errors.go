package bitstream

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidBitCount is returned (or panicked on writers) when a bit count is outside 0..64
	ErrInvalidBitCount = errors.New("bit count must be within 0..64")
)

// OutOfBoundsError is returned when reading past the end of the available bits
type OutOfBoundsError struct {
	Position  int // bit position of the read cursor
	Requested int // number of bits requested
	Length    int // number of readable bits
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("bitstream: read of %d bits at bit %d exceeds length %d", e.Requested, e.Position, e.Length)
}

// IsOutOfBounds checks if err (or its cause) is an OutOfBoundsError
func IsOutOfBounds(err error) bool {
	_, ok := errors.Cause(err).(*OutOfBoundsError)
	return ok
}
