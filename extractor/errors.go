package extractor

import "fmt"

// ExtractionError marks a detail page that could not be turned into a
// record. It counts against the run's skip budget but is not fatal alone.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
}
