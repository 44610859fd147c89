package config

import "errors"

// Configuration validation errors.
// These are returned by Config.Validate() and usable with errors.Is for
// programmatic handling while still reading well for humans.
var (
	// ErrNoSeed is returned when no seed URL is specified.
	ErrNoSeed = errors.New("no seed specified: provide at least one site URL")

	// ErrInvalidMaxDepth is returned when the depth bound is negative.
	// Depth 0 is valid and means only the seed page.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	// A batch size of zero would mean no pages are ever fetched.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidBatchDelay is returned when the inter-batch delay is
	// negative; use 0 for no delay between batches.
	ErrInvalidBatchDelay = errors.New("invalid batch delay: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not
	// positive. A zero timeout would cause immediate failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is
	// negative; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidSiteConcurrency is returned when the per-site crawl
	// concurrency is not positive.
	ErrInvalidSiteConcurrency = errors.New("invalid site concurrency: must be positive")
)
