package nn

import "asteroidnet/internal/tensor"

// Error is a sentinel for graph failures. Wrapped errors carry the node and
// shape details; compare with errors.Is.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

var (
	ErrArityViolation   = Error{"arity violation"}
	ErrInvalidOperation = Error{"invalid operation"}
	ErrNotMember        = Error{"component is not a member of the layer"}
	ErrCycle            = Error{"graph contains a cycle outside a recurrent vector"}
	ErrOutOfRange       = Error{"parameter out of range"}
	ErrIterationLimit   = Error{"iteration limit exceeded"}
	ErrBusy             = Error{"network pass already in progress"}

	ErrTransferExists   = Error{"transfer function already registered"}
	ErrTransferNotFound = Error{"transfer function not found"}
)

// Array failures surface unchanged from the tensor package.
var (
	ErrShapeMismatch     = tensor.ErrShapeMismatch
	ErrDimensionMismatch = tensor.ErrDimensionMismatch
	ErrInvalidArgument   = tensor.ErrInvalidArgument
)
