package archive

import "fmt"

var (
	// ErrNotFound is returned when no document exists for the given
	// run / name pair.
	ErrNotFound = fmt.Errorf("archived document not found")
)
