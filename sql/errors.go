package sql

import "gopkg.in/src-d/go-errors.v1"

var (
	// ErrInvariantViolation is returned when an internal inconsistency is
	// detected. It is never expected for a valid planner input; the query
	// is aborted.
	ErrInvariantViolation = errors.NewKind("invariant violation: %s")

	// ErrOutOfMemory is returned when a buffer or list file cannot be
	// allocated. Partial list files are destroyed before returning.
	ErrOutOfMemory = errors.NewKind("out of memory: %s")

	// ErrTypeCoercion is returned when two values cannot be compared or
	// coerced to a common domain.
	ErrTypeCoercion = errors.NewKind("cannot coerce %q to %s")

	// ErrNumericOverflow is returned on arithmetic overflow during
	// aggregation.
	ErrNumericOverflow = errors.NewKind("numeric overflow in %s")

	// ErrInterrupted is returned when the session interrupt flag is
	// observed at a row boundary.
	ErrInterrupted = errors.NewKind("query interrupted")

	// ErrIncompatibleCollation is returned when two string values have no
	// common runtime collation.
	ErrIncompatibleCollation = errors.NewKind("incompatible collations %s and %s")

	// ErrNotComparable is returned by Compare when two values have no
	// common domain to be ordered in. MIN/MAX report this case as
	// ErrTypeCoercion.
	ErrNotComparable = errors.NewKind("types %s and %s are not comparable")
)
