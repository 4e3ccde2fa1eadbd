package persistence

import "fmt"

// NotFoundError reports a missing state file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no network state found at %s", e.Path)
}
