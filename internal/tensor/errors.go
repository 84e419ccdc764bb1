package tensor

// Error is a sentinel for array failures that need no extra fields. Callers
// compare with errors.Is; the wrapped message carries the offending shapes.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

var (
	ErrShapeMismatch     = Error{"shape mismatch"}
	ErrDimensionMismatch = Error{"dimension mismatch"}
	ErrRank              = Error{"unsupported rank"}
	ErrInvalidArgument   = Error{"invalid argument"}
)
