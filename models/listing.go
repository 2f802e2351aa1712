// Package models defines data structures shared across the crawler.
package models

import (
	"net/url"
	"strings"
	"time"
)

// ListingRecord represents one real-estate listing extracted from a detail page.
// Optional numeric fields are nil when the page does not expose them.
type ListingRecord struct {
	Code          string    `csv:"code" json:"code"`
	Title         string    `csv:"title" json:"title"`
	Category      string    `csv:"category" json:"category"`
	Operation     string    `csv:"operation" json:"operation"`
	Price         *float64  `csv:"price" json:"price"`
	OriginalPrice *float64  `csv:"original_price" json:"original_price"`
	CondoFee      *float64  `csv:"condo_fee" json:"condo_fee"`
	IPTU          *float64  `csv:"iptu" json:"iptu"`
	Address       string    `csv:"address" json:"address"`
	Neighborhood  string    `csv:"neighborhood" json:"neighborhood"`
	City          string    `csv:"city" json:"city"`
	State         string    `csv:"state" json:"state"`
	UsableArea    *float64  `csv:"usable_area" json:"usable_area"`
	TotalArea     *float64  `csv:"total_area" json:"total_area"`
	Bedrooms      *int      `csv:"bedrooms" json:"bedrooms"`
	Suites        *int      `csv:"suites" json:"suites"`
	Bathrooms     *int      `csv:"bathrooms" json:"bathrooms"`
	ParkingSpots  *int      `csv:"parking_spots" json:"parking_spots"`
	Description   string    `csv:"description" json:"description"`
	Features      []string  `csv:"features" json:"features"`
	Amenities     []string  `csv:"amenities" json:"amenities"`
	ImageURLs     []string  `csv:"image_urls" json:"image_urls"`
	URL           string    `csv:"url" json:"url"`
	CollectedAt   time.Time `csv:"collected_at" json:"collected_at"`
}

// Identity returns the dedupe key for the record: the site-assigned code when
// present, otherwise the normalized source URL.
func (r *ListingRecord) Identity() string {
	if r.Code != "" {
		return r.Code
	}
	return NormalizeURL(r.URL)
}

// NormalizeURL strips query, fragment, and trailing slash so the same listing
// reached through different link variants maps to one key.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)
	return strings.TrimSuffix(parsed.String(), "/")
}

// RunState is the terminal or in-flight state of a crawl run.
type RunState string

const (
	StateInit        RunState = "INIT"
	StateDiscovering RunState = "DISCOVERING_PAGES"
	StateCrawling    RunState = "CRAWLING"
	StateFinalizing  RunState = "FINALIZING"
	StateDone        RunState = "DONE"
	StateAborted     RunState = "ABORTED"
)

// RunResult summarises a crawl run.
type RunResult struct {
	State          RunState
	StartTime      time.Time
	EndTime        time.Time
	PagesWalked    int
	Attempted      int
	Upserted       int
	Skipped        int
	AlreadyStored  int
	RetryCount     int
	FailuresByType map[string]int
	AbortCause     string
}

// Duration returns the wall-clock time the run took.
func (r *RunResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// SkipRatio returns the fraction of attempted listings that were skipped.
func (r *RunResult) SkipRatio() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Skipped) / float64(r.Attempted)
}
