package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/sitemapper/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Fetcher fetches the raw markup of an absolute URL. The relay chain is
// the production implementation.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// Default crawl bounds. These are deliberately conservative: many target
// sites rate-limit aggressively, and a small batch with a fixed
// inter-batch delay keeps the relay chain's exposure predictable.
const (
	// DefaultMaxDepth limits how many link hops from the seed are
	// followed. Depth 0 is the seed itself.
	DefaultMaxDepth = 3

	// DefaultMaxPages bounds the total number of tasks ever enqueued.
	DefaultMaxPages = 500

	// DefaultBatchSize is the number of tasks processed concurrently per
	// scheduler iteration.
	DefaultBatchSize = 4

	// DefaultBatchDelay is the fixed wait between batches.
	DefaultBatchDelay = 750 * time.Millisecond
)

// estimateWindow is how many processed pages the total-estimate
// heuristic keeps being revised for. Past this point the estimate is
// frozen; early pages dominate the projection anyway.
const estimateWindow = 10

// Scheduler owns the crawl loop for one site-discovery run.
//
// All shared structures (discovered set, queue, stats, tree) are guarded
// by a single mutex: the per-task goroutines within one batch are the
// only concurrent writers, and they take the lock for every mutation.
type Scheduler struct {
	fetcher    Fetcher
	maxDepth   int
	maxPages   int
	batchSize  int
	batchDelay time.Duration
	reporter   ProgressReporter
	diag       Diagnostics
	logger     *slog.Logger

	mu   sync.Mutex
	cond *sync.Cond

	state      model.CrawlState
	baseURL    *url.URL
	baseDomain string
	seedURL    string

	cancel context.CancelFunc
	done   chan struct{}
	result model.CrawlResult
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxDepth sets the maximum crawl depth. 0 means only the seed page.
func WithMaxDepth(depth int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of tasks ever enqueued.
func WithMaxPages(maxPages int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxPages = maxPages
	}
}

// WithBatchSize sets how many tasks are processed concurrently per
// iteration.
func WithBatchSize(size int) SchedulerOption {
	return func(s *Scheduler) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithBatchDelay sets the fixed wait between batches.
func WithBatchDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.batchDelay = d
	}
}

// WithProgress sets the progress reporter invoked after every batch and
// on every status transition.
func WithProgress(r ProgressReporter) SchedulerOption {
	return func(s *Scheduler) {
		s.reporter = r
	}
}

// WithDiagnostics injects an optional diagnostics sink.
func WithDiagnostics(d Diagnostics) SchedulerOption {
	return func(s *Scheduler) {
		s.diag = d
	}
}

// WithSchedulerLogger sets the logger for crawl-loop events.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a Scheduler that fetches through the given Fetcher.
func New(fetcher Fetcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		fetcher:    fetcher,
		maxDepth:   DefaultMaxDepth,
		maxPages:   DefaultMaxPages,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
		done:       make(chan struct{}),
		state: model.CrawlState{
			DiscoveredURLs: make(map[string]bool),
			Queue:          make([]model.CrawlTask, 0),
			Status:         model.StatusIdle,
		},
	}
	s.cond = sync.NewCond(&s.mu)

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Start normalizes the seed, seeds the queue, and launches the crawl
// loop in a background goroutine. It returns immediately; use Done to
// wait for completion and Result for the final summary.
//
// A seed that cannot be parsed even after default-scheme normalization
// transitions the crawl directly to the error status and is returned as
// an error; no fetch is attempted.
func (s *Scheduler) Start(ctx context.Context, seed string) error {
	s.mu.Lock()

	if s.state.Status != model.StatusIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	base, normalized, err := normalizeSeed(seed)
	if err != nil {
		s.state.Status = model.StatusError
		s.mu.Unlock()
		s.emitProgress()
		return err
	}

	s.baseURL = &url.URL{Scheme: base.Scheme, Host: base.Host}
	s.baseDomain = base.Hostname()
	s.seedURL = normalized
	if s.state.Tree == nil {
		s.state.Tree = model.NewPageTree(s.baseDomain)
	}

	s.state.Queue = append(s.state.Queue, model.CrawlTask{
		URL:      normalized,
		Depth:    0,
		Priority: model.PrioritySeed,
	})
	// The seed is one more enqueue on top of any pre-seeded pages; a
	// seed already known via SeedKnownURLs is not counted twice.
	if !s.state.DiscoveredURLs[normalized] {
		s.state.Stats.PagesFound++
	}
	s.state.Stats.StartTime = time.Now()
	s.state.Status = model.StatusCrawling

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.emitProgress()
	go s.run(runCtx)

	return nil
}

// SeedKnownURLs pre-seeds the discovered set and the tree with URLs
// supplied by an external collaborator (typically a sitemap), without
// fetching them. It may be called before Start; the tree root is derived
// from the first URL when none exists yet.
func (s *Scheduler) SeedKnownURLs(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		normalized := NormalizeURL(u)

		if s.state.Tree == nil {
			s.state.Tree = model.NewPageTree(u.Hostname())
		}
		if s.state.DiscoveredURLs[normalized] {
			continue
		}

		s.state.DiscoveredURLs[normalized] = true
		s.state.Tree.Insert(normalized, "")
		s.state.Stats.PagesFound++
	}
}

// Pause holds back the next batch. The in-flight batch is allowed to
// finish and emit its snapshot; the paused snapshot is emitted by the
// control loop when it reaches the gate. Pause is a no-op unless the
// crawl is actively crawling.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != model.StatusCrawling {
		return
	}
	s.state.Status = model.StatusPaused
}

// Resume continues a paused crawl. The control loop emits the crawling
// snapshot when it wakes. Resume is a no-op unless paused.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != model.StatusPaused {
		return
	}
	s.state.Status = model.StatusCrawling
	s.cond.Broadcast()
}

// Stop forces an immediate transition to the complete status and cancels
// in-flight relay calls. Queued tasks are not processed; the control
// loop emits the final snapshot as it exits. Stop is valid from any
// non-terminal state and is a no-op afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	wasIdle := s.state.Status == model.StatusIdle
	s.state.Status = model.StatusComplete
	if s.cancel != nil {
		s.cancel()
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	// A crawl that never started has no loop to emit the final snapshot
	// or close the done channel.
	if wasIdle {
		s.emitProgress()
		close(s.done)
	}
}

// State returns the live crawl state snapshot, shared by reference.
// Callers must treat it as read-only.
func (s *Scheduler) State() *model.CrawlState {
	return &s.state
}

// Done is closed when the crawl loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Result returns the final crawl summary. It is only meaningful after
// Done is closed.
func (s *Scheduler) Result() model.CrawlResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// run is the main crawl loop. It repeats while the queue is non-empty,
// the status is crawling, and the processed count is under the page cap.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	// Burst 1 means the first batch starts immediately and each later
	// batch waits the fixed inter-batch delay.
	limiter := rate.NewLimiter(rate.Every(s.batchDelay), 1)

	for {
		s.mu.Lock()

		// Pause gate: hold before selecting the next batch. The batch
		// that was in flight when Pause was called has already settled.
		// Transition snapshots are emitted here so every reporter call
		// happens on the control goroutine.
		if s.state.Status == model.StatusPaused {
			s.mu.Unlock()
			s.emitProgress()
			s.mu.Lock()
			for s.state.Status == model.StatusPaused {
				s.cond.Wait()
			}
			if s.state.Status == model.StatusCrawling {
				s.mu.Unlock()
				s.emitProgress()
				s.mu.Lock()
			}
		}

		if s.state.Status != model.StatusCrawling ||
			len(s.state.Queue) == 0 ||
			s.state.Stats.PagesProcessed >= s.maxPages {
			break
		}

		batch := s.nextBatchLocked()
		s.mu.Unlock()

		if err := limiter.Wait(ctx); err != nil {
			// Cancelled while throttling; the selected batch is
			// discarded and the loop finalizes below.
			s.mu.Lock()
			break
		}

		s.processBatch(ctx, batch)
		s.emitProgress()
	}

	// Loop exited with the lock held. Whether the queue drained or a
	// Stop forced completion, the terminal snapshot is emitted here.
	if s.state.Status == model.StatusCrawling {
		s.state.Status = model.StatusComplete
	}
	s.result = model.CrawlResult{
		Site:     s.baseDomain,
		SeedURL:  s.seedURL,
		Tree:     s.state.Tree,
		Stats:    s.state.Stats,
		Status:   s.state.Status,
		Duration: time.Since(s.state.Stats.StartTime),
	}
	s.mu.Unlock()

	s.emitProgress()

	s.logger.Info("crawl finished",
		"site", s.baseDomain,
		"pages_found", s.result.Stats.PagesFound,
		"pages_processed", s.result.Stats.PagesProcessed,
		"failed", len(s.result.Stats.FailedPages),
		"duration", s.result.Duration,
	)
}

// nextBatchLocked resorts the queue by ascending priority and removes
// the first batchSize tasks. Callers must hold the mutex.
func (s *Scheduler) nextBatchLocked() []model.CrawlTask {
	sort.SliceStable(s.state.Queue, func(i, j int) bool {
		return s.state.Queue[i].Priority < s.state.Queue[j].Priority
	})

	n := s.batchSize
	if n > len(s.state.Queue) {
		n = len(s.state.Queue)
	}

	batch := make([]model.CrawlTask, n)
	copy(batch, s.state.Queue[:n])
	s.state.Queue = s.state.Queue[n:]
	return batch
}

// processBatch runs every task in the batch concurrently and waits for
// all of them to settle. One task's failure never aborts its siblings.
func (s *Scheduler) processBatch(ctx context.Context, batch []model.CrawlTask) {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range batch {
		g.Go(func() error {
			s.processPage(ctx, task)
			// Errors are recorded per page; never fail the group.
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks never return errors
}

// processPage performs the fetch/extract/insert side effects for one
// task, at most once per URL per crawl run.
func (s *Scheduler) processPage(ctx context.Context, task model.CrawlTask) {
	// Mark the URL discovered before attempting the fetch, so a slow or
	// failing fetch cannot be double-scheduled by a concurrent batch.
	s.mu.Lock()
	if s.state.DiscoveredURLs[task.URL] {
		s.mu.Unlock()
		if s.diag != nil {
			s.diag.PageSkipped(task.URL)
		}
		return
	}
	s.state.DiscoveredURLs[task.URL] = true
	s.state.Stats.PagesProcessed++
	s.mu.Unlock()

	markup, err := s.fetcher.FetchPage(ctx, task.URL)
	if err != nil {
		// A caller-initiated abort is not an organic failure: the task
		// simply stops contributing to the tree.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}

		s.mu.Lock()
		s.state.Stats.FailedPages = append(s.state.Stats.FailedPages, task.URL)
		s.mu.Unlock()

		s.logger.Debug("page failed", "url", task.URL, "error", err)
		if s.diag != nil {
			s.diag.PageFailed(task.URL, err)
		}
		return
	}

	page := Extract(markup, s.baseURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Tree.Insert(task.URL, page.Title)

	if task.Depth > s.state.Stats.CurrentDepth {
		s.state.Stats.CurrentDepth = task.Depth
	}

	// Rough, continuously revised projection from the branching factor
	// observed at this page; used only to drive a progress percentage.
	if s.state.Stats.PagesProcessed < estimateWindow {
		s.state.Stats.EstimatedTotal = powClamp(len(page.Links), s.maxDepth-task.Depth, s.maxPages)
	}

	// The page cap is enforced at enqueue time so the queue itself never
	// overflows the budget.
	if task.Depth >= s.maxDepth {
		return
	}
	parents := pathSegments(task.URL)
	for _, link := range page.Links {
		if s.state.DiscoveredURLs[link] {
			continue
		}
		if s.state.Stats.PagesFound >= s.maxPages {
			break
		}
		s.state.Queue = append(s.state.Queue, model.CrawlTask{
			URL:            link,
			Depth:          task.Depth + 1,
			ParentSegments: parents,
			Priority:       model.TaskPriority(task.Depth + 1),
		})
		s.state.Stats.PagesFound++
	}
}

// emitProgress invokes the progress reporter with the shared snapshot.
// The reporter runs synchronously on the calling goroutine, outside the
// scheduler's lock so consumers may call State without deadlocking.
func (s *Scheduler) emitProgress() {
	if s.reporter == nil {
		return
	}
	s.reporter.OnProgress(&s.state)
}

// normalizeSeed turns caller input into an absolute https URL, returning
// the parsed base and the normalized seed string.
func normalizeSeed(seed string) (*url.URL, string, error) {
	seed = strings.TrimSpace(seed)
	lower := strings.ToLower(seed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		seed = "https://" + seed
	}

	u, err := url.Parse(seed)
	if err != nil {
		return nil, "", ErrInvalidSeed
	}
	if u.Hostname() == "" {
		return nil, "", ErrInvalidSeed
	}

	return u, NormalizeURL(u), nil
}

// pathSegments returns the non-empty path segments of a URL, used as the
// parent trail for tasks spawned from it.
func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	parts := strings.Split(u.Path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// powClamp computes base^exp clamped to max. Used only by the
// total-estimate heuristic, which can both overshoot and undershoot for
// irregular branching factors.
func powClamp(base, exp, max int) int {
	if base < 0 {
		base = 0
	}
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
		if result >= max || result < 0 {
			return max
		}
	}
	if result > max {
		return max
	}
	return result
}
