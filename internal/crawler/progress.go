package crawler

import "github.com/nao1215/sitemapper/internal/model"

// ProgressReporter receives the full crawl state after every processed
// batch and on every status transition.
//
// The snapshot is shared by reference and mutated in place by the
// scheduler between calls; consumers must treat it as read-only. Calls
// are synchronous from the control loop with no batching or debouncing,
// so any UI-side throttling is the consumer's responsibility.
type ProgressReporter interface {
	OnProgress(state *model.CrawlState)
}

// ProgressFunc adapts a function to the ProgressReporter interface.
type ProgressFunc func(state *model.CrawlState)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(state *model.CrawlState) {
	f(state)
}

// Diagnostics is an optional sink for introspection events that are not
// part of the progress contract.
//
// Design decision: This is an explicit injected port rather than a
// runtime-global debug handle. Callers that want introspection pass a
// sink through WithDiagnostics; nothing is observable otherwise.
type Diagnostics interface {
	// PageFailed is invoked when a page's fetch and processing failed
	// organically (not via cancellation).
	PageFailed(url string, err error)

	// PageSkipped is invoked when a dequeued task is dropped because its
	// URL was already processed.
	PageSkipped(url string)
}
