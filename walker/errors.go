package walker

import "fmt"

// StructureChangedError signals that the index markup no longer matches the
// walker's expectations, as opposed to a search that legitimately returned
// no results.
type StructureChangedError struct {
	URL    string
	Reason string
}

func (e *StructureChangedError) Error() string {
	return fmt.Sprintf("structure changed at %s: %s", e.URL, e.Reason)
}
