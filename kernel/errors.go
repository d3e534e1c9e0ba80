package kernel

import "errors"

// Kernel operations surface exactly one of these values; errors are never
// stored and never wrapped inside the kernel itself.
var (
	// ErrInvalidArg reports an input that violates a documented precondition.
	ErrInvalidArg = errors.New("kernel: invalid argument")

	// ErrInvalidState reports an operation issued out of order, such as
	// exiting a section that was never entered.
	ErrInvalidState = errors.New("kernel: invalid state")

	// ErrTimeout reports a bounded wait that elapsed without progress.
	ErrTimeout = errors.New("kernel: timeout")

	// ErrOverflow reports arithmetic overflow during a unit conversion.
	ErrOverflow = errors.New("kernel: overflow")

	// ErrInternal reports a failed sub-operation, typically a clock read.
	// Callers should treat it as fatal.
	ErrInternal = errors.New("kernel: internal error")

	// ErrBusy reports a resource with no free capacity.
	ErrBusy = errors.New("kernel: busy")
)
