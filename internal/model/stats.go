package model

import "time"

// CrawlStats holds the aggregate counters for one crawl run.
// The scheduler mutates a single instance in place while the crawl runs.
//
// Invariants maintained by the scheduler:
//   - PagesProcessed is monotonically non-decreasing and never exceeds
//     PagesFound
//   - len(FailedPages) never exceeds PagesProcessed
type CrawlStats struct {
	// PagesFound counts tasks ever enqueued, including the seed.
	PagesFound int `json:"pages_found"`

	// PagesProcessed counts tasks dequeued and attempted, whether or not
	// the fetch succeeded.
	PagesProcessed int `json:"pages_processed"`

	// CurrentDepth is the maximum depth processed so far.
	CurrentDepth int `json:"current_depth"`

	// EstimatedTotal is a heuristic projection of the final page count.
	// It is revised continuously early in the crawl and clamped to the
	// page cap. It exists only to drive a progress percentage and must
	// not be treated as a correctness-bearing value.
	EstimatedTotal int `json:"estimated_total"`

	// StartTime is when the crawl started.
	StartTime time.Time `json:"start_time"`

	// FailedPages lists URLs whose fetch and processing failed, in
	// completion order. Cancelled fetches are not recorded here.
	FailedPages []string `json:"failed_pages,omitempty"`
}
