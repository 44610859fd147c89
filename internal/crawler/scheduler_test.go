package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/model"
)

// stubFetcher serves canned markup per URL and records every fetch.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls map[string]int

	// blockOn, when non-empty, makes fetches of that URL wait until the
	// context is cancelled. started is signalled when the wait begins.
	blockOn string
	started chan struct{}
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *stubFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls[url]++
	block := f.blockOn != "" && f.blockOn == url
	markup, ok := f.pages[url]
	err := f.errs[url]
	f.mu.Unlock()

	if block {
		select {
		case f.started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "<html><body></body></html>", nil
	}
	return markup, nil
}

func (f *stubFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *stubFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func waitDone(t *testing.T, s *Scheduler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("crawl did not finish in time")
	}
}

// TestSchedulerStraightforwardSite tests the basic discovery flow.
func TestSchedulerStraightforwardSite(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = `<html><body>
		<a href="/about">About</a>
		<a href="/contact">Contact</a>
		<a href="https://other.com/x">Elsewhere</a>
	</body></html>`

	var snapshots []model.CrawlStats
	s := New(fetcher,
		WithBatchDelay(0),
		WithProgress(ProgressFunc(func(st *model.CrawlState) {
			snapshots = append(snapshots, st.Stats)
		})),
	)

	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	result := s.Result()
	if result.Status != model.StatusComplete {
		t.Errorf("expected complete, got %s", result.Status)
	}
	if result.Stats.PagesFound != 3 {
		t.Errorf("expected 3 pages found (seed + 2 children), got %d", result.Stats.PagesFound)
	}
	if result.Stats.PagesProcessed != 3 {
		t.Errorf("expected 3 pages processed, got %d", result.Stats.PagesProcessed)
	}

	if len(result.Tree.Children) != 2 {
		t.Fatalf("expected 2 children under root, got %d", len(result.Tree.Children))
	}
	if result.Tree.Child("about") == nil || result.Tree.Child("contact") == nil {
		t.Errorf("expected about and contact nodes, got %+v", result.Tree.Children)
	}
	if fetcher.callCount("https://other.com/x") != 0 {
		t.Error("different-host link was fetched")
	}

	// Counters are monotonically non-decreasing across snapshots.
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i].PagesProcessed < snapshots[i-1].PagesProcessed {
			t.Error("PagesProcessed decreased between snapshots")
		}
		if snapshots[i].PagesFound < snapshots[i-1].PagesFound {
			t.Error("PagesFound decreased between snapshots")
		}
		if snapshots[i].PagesProcessed > snapshots[i].PagesFound {
			t.Error("PagesProcessed exceeded PagesFound")
		}
	}
}

// TestSchedulerSeedNormalization tests default-scheme seeding.
func TestSchedulerSeedNormalization(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	s := New(fetcher, WithBatchDelay(0))

	if err := s.Start(context.Background(), "example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	if fetcher.callCount("https://example.com") != 1 {
		t.Errorf("expected normalized https seed fetch, calls: %v", fetcher.calls)
	}
	if s.Result().Site != "example.com" {
		t.Errorf("expected site example.com, got %q", s.Result().Site)
	}
}

// TestSchedulerInvalidSeed tests that a bad seed fails before fetching.
func TestSchedulerInvalidSeed(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	s := New(fetcher)

	err := s.Start(context.Background(), "http://")
	if !errors.Is(err, ErrInvalidSeed) {
		t.Fatalf("expected ErrInvalidSeed, got %v", err)
	}
	if s.State().Status != model.StatusError {
		t.Errorf("expected error status, got %s", s.State().Status)
	}
	if fetcher.totalCalls() != 0 {
		t.Error("no fetch should be attempted for an invalid seed")
	}
}

// TestSchedulerFailedPage tests that page failures are contained.
func TestSchedulerFailedPage(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = `<html><body>
		<a href="/broken">Broken</a>
		<a href="/fine">Fine</a>
	</body></html>`
	fetcher.errs["https://example.com/broken"] = fmt.Errorf("all relays failed")

	s := New(fetcher, WithBatchDelay(0))
	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	result := s.Result()
	if result.Status != model.StatusComplete {
		t.Errorf("a page failure must not end the crawl, got %s", result.Status)
	}

	failed := 0
	for _, u := range result.Stats.FailedPages {
		if u == "https://example.com/broken" {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected broken page in failedPages exactly once, got %v", result.Stats.FailedPages)
	}

	if result.Tree.Child("fine") == nil {
		t.Error("sibling page should still be processed")
	}
	if result.Tree.Child("broken") != nil {
		t.Error("failed page must not be inserted into the tree")
	}
}

// TestSchedulerDepthCap tests that links at the depth limit are not followed.
func TestSchedulerDepthCap(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = `<a href="/level1">L1</a>`
	fetcher.pages["https://example.com/level1"] = `<a href="/level1/level2">L2</a>`

	s := New(fetcher, WithBatchDelay(0), WithMaxDepth(1))
	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	result := s.Result()
	if fetcher.callCount("https://example.com/level1/level2") != 0 {
		t.Error("page beyond the depth cap was fetched")
	}
	if result.Stats.PagesFound != 2 {
		t.Errorf("expected 2 pages found, got %d", result.Stats.PagesFound)
	}
	if result.Stats.CurrentDepth > 1 {
		t.Errorf("CurrentDepth exceeded the cap: %d", result.Stats.CurrentDepth)
	}
}

// TestSchedulerPageCap tests enqueue-time enforcement of the page budget.
func TestSchedulerPageCap(t *testing.T) {
	t.Parallel()

	markup := "<html><body>"
	for i := 0; i < 20; i++ {
		markup += fmt.Sprintf(`<a href="/page%d">p</a>`, i)
	}
	markup += "</body></html>"

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = markup

	s := New(fetcher, WithBatchDelay(0), WithMaxPages(5))
	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	result := s.Result()
	if result.Stats.PagesFound > 5 {
		t.Errorf("PagesFound exceeded maxPages: %d", result.Stats.PagesFound)
	}
	if result.Stats.PagesProcessed > 5 {
		t.Errorf("PagesProcessed exceeded maxPages: %d", result.Stats.PagesProcessed)
	}
}

// TestSchedulerAtMostOnce tests that a URL enqueued via two parents is
// processed at most once.
func TestSchedulerAtMostOnce(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = `<a href="/x">X</a><a href="/y">Y</a>`
	fetcher.pages["https://example.com/x"] = `<a href="/shared">S</a>`
	fetcher.pages["https://example.com/y"] = `<a href="/shared">S</a>`

	s := New(fetcher, WithBatchDelay(0), WithBatchSize(4))
	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	if got := fetcher.callCount("https://example.com/shared"); got != 1 {
		t.Errorf("expected shared page fetched exactly once, got %d", got)
	}
}

// TestSchedulerPauseResume tests the pause gate between batches.
func TestSchedulerPauseResume(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = `<a href="/a">A</a><a href="/b">B</a>`

	pausedCh := make(chan struct{})
	var pausedOnce atomic.Bool

	var s *Scheduler
	s = New(fetcher,
		WithBatchDelay(0),
		WithProgress(ProgressFunc(func(st *model.CrawlState) {
			// After the first batch settles, pause before the next one.
			if st.Status == model.StatusCrawling && st.Stats.PagesProcessed == 1 && pausedOnce.CompareAndSwap(false, true) {
				s.Pause()
				close(pausedCh)
			}
		})),
	)

	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-pausedCh:
	case <-time.After(10 * time.Second):
		t.Fatal("crawl never paused")
	}

	// No new batch may start while paused.
	before := fetcher.totalCalls()
	time.Sleep(50 * time.Millisecond)
	if after := fetcher.totalCalls(); after != before {
		t.Errorf("fetches continued while paused: %d -> %d", before, after)
	}

	s.Resume()
	waitDone(t, s)

	result := s.Result()
	if result.Status != model.StatusComplete {
		t.Errorf("expected complete, got %s", result.Status)
	}
	for _, u := range []string{"https://example.com", "https://example.com/a", "https://example.com/b"} {
		if got := fetcher.callCount(u); got != 1 {
			t.Errorf("expected %s fetched exactly once after resume, got %d", u, got)
		}
	}
}

// TestSchedulerStop tests immediate completion and in-flight cancellation.
func TestSchedulerStop(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = `<a href="/a">A</a>`
	fetcher.blockOn = "https://example.com"
	fetcher.started = make(chan struct{}, 1)

	s := New(fetcher, WithBatchDelay(0))
	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-fetcher.started:
	case <-time.After(10 * time.Second):
		t.Fatal("seed fetch never started")
	}

	s.Stop()
	waitDone(t, s)

	result := s.Result()
	if result.Status != model.StatusComplete {
		t.Errorf("expected complete after stop, got %s", result.Status)
	}
	// The cancelled in-flight fetch is not an organic failure.
	if len(result.Stats.FailedPages) != 0 {
		t.Errorf("cancelled fetch must not be recorded as failed: %v", result.Stats.FailedPages)
	}
	if fetcher.callCount("https://example.com/a") != 0 {
		t.Error("queued task was processed after stop")
	}
}

// TestSchedulerSeedKnownURLs tests the sitemap pre-seed entry point.
func TestSchedulerSeedKnownURLs(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = `<a href="/known">K</a><a href="/new">N</a>`

	s := New(fetcher, WithBatchDelay(0))
	s.SeedKnownURLs([]string{"https://example.com/known", "https://example.com/known/deep"})

	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	if fetcher.callCount("https://example.com/known") != 0 {
		t.Error("pre-seeded URL was fetched")
	}
	if fetcher.callCount("https://example.com/new") != 1 {
		t.Error("newly discovered URL was not fetched")
	}

	result := s.Result()
	known := result.Tree.Child("known")
	if known == nil || known.Child("deep") == nil {
		t.Error("pre-seeded URLs missing from tree")
	}
}

// TestSchedulerSeedKnownURLsCounters tests that pre-seeded pages stay
// counted once the crawl starts.
func TestSchedulerSeedKnownURLsCounters(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.pages["https://example.com"] = `<a href="/new">N</a>`

	var snapshots []model.CrawlStats
	s := New(fetcher,
		WithBatchDelay(0),
		WithProgress(ProgressFunc(func(st *model.CrawlState) {
			snapshots = append(snapshots, st.Stats)
		})),
	)
	s.SeedKnownURLs([]string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	})
	if got := s.State().Stats.PagesFound; got != 3 {
		t.Fatalf("expected 3 pages found after pre-seed, got %d", got)
	}

	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	// 3 pre-seeded + seed + one discovered link.
	if got := s.Result().Stats.PagesFound; got != 5 {
		t.Errorf("expected 5 pages found, got %d", got)
	}
	prev := 3
	for _, st := range snapshots {
		if st.PagesFound < prev {
			t.Errorf("PagesFound decreased between snapshots: %d -> %d", prev, st.PagesFound)
		}
		prev = st.PagesFound
	}
}

// TestSchedulerPreSeededSeed tests starting on a URL that was itself
// pre-seeded.
func TestSchedulerPreSeededSeed(t *testing.T) {
	t.Parallel()

	s := New(newStubFetcher(), WithBatchDelay(0))
	s.SeedKnownURLs([]string{"https://example.com"})

	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	if got := s.Result().Stats.PagesFound; got != 1 {
		t.Errorf("expected the shared seed to be counted once, got %d", got)
	}
}

// TestSchedulerRestart tests that a scheduler drives exactly one crawl.
func TestSchedulerRestart(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	s := New(fetcher, WithBatchDelay(0))

	if err := s.Start(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, s)

	if err := s.Start(context.Background(), "https://example.com"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

// TestPowClamp tests the estimate heuristic helper.
func TestPowClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base, exp, max, want int
	}{
		{2, 3, 500, 8},
		{10, 3, 500, 500},
		{0, 3, 500, 0},
		{5, 0, 500, 1},
		{100, 10, 500, 500},
	}
	for _, tt := range tests {
		if got := powClamp(tt.base, tt.exp, tt.max); got != tt.want {
			t.Errorf("powClamp(%d, %d, %d) = %d, want %d", tt.base, tt.exp, tt.max, got, tt.want)
		}
	}
}
