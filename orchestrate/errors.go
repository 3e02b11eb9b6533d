package orchestrate

import "errors"

// Registry errors.
var (
	// ErrInvalidBinding indicates a binding without an adapter or category.
	ErrInvalidBinding = errors.New("orchestrate: invalid binding")

	// ErrDuplicateBinding indicates two bindings for the same category.
	ErrDuplicateBinding = errors.New("orchestrate: duplicate binding")

	// ErrNoCacheCategory indicates a binding whose category the cache
	// manager does not declare.
	ErrNoCacheCategory = errors.New("orchestrate: no cache category for binding")
)
