package model

import "time"

// CrawlState is the full snapshot handed to progress observers after
// every batch and on every status transition.
//
// Ownership: the scheduler exclusively owns and mutates DiscoveredURLs,
// Queue, and Stats. The tree is shared by reference with the observer's
// consumer, which must treat the whole snapshot as read-only.
type CrawlState struct {
	// DiscoveredURLs is the set of every URL ever enqueued, used for
	// deduplication and counting.
	DiscoveredURLs map[string]bool `json:"discovered_urls"`

	// Queue holds the remaining pending tasks.
	Queue []CrawlTask `json:"queue"`

	// Tree is the root of the discovered page hierarchy, mutated in
	// place as the crawl progresses.
	Tree *PageTreeNode `json:"tree"`

	// Status is the current state-machine state.
	Status Status `json:"status"`

	// Stats holds the aggregate counters.
	Stats CrawlStats `json:"stats"`
}

// CrawlResult is the immutable summary of a finished crawl, consumed by
// the database and report packages.
type CrawlResult struct {
	// Site is the hostname of the crawled site.
	Site string `json:"site"`

	// SeedURL is the normalized URL the crawl started from.
	SeedURL string `json:"seed_url"`

	// Tree is the final discovered page hierarchy.
	Tree *PageTreeNode `json:"tree"`

	// Stats holds the final counters.
	Stats CrawlStats `json:"stats"`

	// Status is the terminal status, StatusComplete or StatusError.
	Status Status `json:"status"`

	// Duration is the wall-clock time the crawl took.
	Duration time.Duration `json:"duration"`
}
