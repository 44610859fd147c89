package model

// Status represents the crawl state machine.
//
// Transitions: idle → crawling → {paused ⇄ crawling} → {complete | error}.
// StatusIdle is the initial state; StatusComplete and StatusError are
// terminal.
type Status int

const (
	// StatusIdle means no crawl has been started yet.
	StatusIdle Status = iota

	// StatusCrawling means the control loop is actively processing batches.
	StatusCrawling

	// StatusPaused means the control loop is holding back the next batch.
	// In-flight work from the current batch is allowed to finish.
	StatusPaused

	// StatusComplete means the crawl finished, either because the queue
	// drained or because the caller stopped it.
	StatusComplete

	// StatusError means the crawl aborted before or during processing due
	// to an unrecoverable error (for example an unparseable seed URL).
	StatusError
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusCrawling:
		return "crawling"
	case StatusPaused:
		return "paused"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}
