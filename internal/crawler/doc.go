// Package crawler implements the progressive site-discovery engine.
//
// # Architecture
//
// The package is built around the Scheduler type, which owns the crawl
// loop: a priority queue of pending fetch tasks, the discovered-URL set,
// bounded concurrency batches, inter-batch throttling, and the
// pause/resume/stop state machine. Fetching is delegated to a Fetcher
// (normally the relay chain) and link extraction is a pure function over
// markup, so both can be tested in isolation.
//
// # Scheduling model
//
// A single control loop drives batches sequentially. Within a batch,
// fetch and processing for all tasks run concurrently and the loop waits
// for every one to settle before proceeding. This bounds peak concurrent
// network calls to the batch size and keeps exposure to upstream rate
// limiting predictable. The queue is resorted by priority before each
// batch so shallower pages are consistently preferred.
//
// # Progress
//
// After every batch and on every status transition the configured
// ProgressReporter receives the full crawl state synchronously. The
// snapshot is shared by reference; consumers must treat it as read-only
// and do their own UI-side throttling.
//
// # Usage
//
//	chain := relay.NewChain()
//	sched := crawler.New(chain,
//		crawler.WithMaxDepth(3),
//		crawler.WithProgress(crawler.ProgressFunc(render)),
//	)
//	if err := sched.Start(ctx, "example.com"); err != nil {
//		return err
//	}
//	<-sched.Done()
//	result := sched.Result()
package crawler
