package core

import "errors"

// Configuration faults, signaled synchronously at construction (spec §7.2):
// invalid pool sizes fail fast rather than corrupting scheduler state.
var (
	ErrInvalidCorePoolSize = errors.New("cosched: corePoolSize must be >= 1")
	ErrInvalidMaxPoolSize  = errors.New("cosched: maxPoolSize must be >= corePoolSize")
)
