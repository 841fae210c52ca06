package rulecache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDependencyKey reports a dependency key that is empty or
	// longer than the envelope can frame.
	ErrInvalidDependencyKey = errors.New("rulecache: dependency key empty or too long")

	// ErrTooManyDependencies reports a write declaring more dependency
	// keys than the envelope can frame.
	ErrTooManyDependencies = errors.New("rulecache: too many dependency keys")
)

// CycleError reports a dependency cycle discovered while cascading a delete.
// The cascade still terminates: every key reached before the cycle closed has
// been deleted exactly once. Path holds the keys along the offending walk,
// ending at the key that was revisited.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "rulecache: dependency cycle detected"
	}
	return fmt.Sprintf("rulecache: dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}
