package crawler

import "errors"

// Scheduler errors.
//
// Design decision: We use package-level sentinel errors so callers can
// branch with errors.Is, matching how the config package reports
// validation failures.
var (
	// ErrInvalidSeed is returned when the seed cannot be parsed as a URL
	// even after default-scheme normalization. The crawl transitions
	// directly to the error status before any fetch is attempted.
	ErrInvalidSeed = errors.New("seed URL cannot be parsed")

	// ErrAlreadyStarted is returned when Start is called on a scheduler
	// that already ran. A Scheduler drives exactly one crawl; create a
	// new one for a new run.
	ErrAlreadyStarted = errors.New("crawl already started")
)
