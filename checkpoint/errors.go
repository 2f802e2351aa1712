package checkpoint

import "fmt"

// PersistenceError reports a snapshot that could not be written after a
// retry. The crawl continues in memory; the next successful snapshot
// catches up.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
