package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/report"
)

// fetcherFunc adapts a function to the crawler.Fetcher interface.
type fetcherFunc func(ctx context.Context, url string) (string, error)

func (f fetcherFunc) FetchPage(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// siteFetcher serves a tiny two-page site from memory.
func siteFetcher() crawler.Fetcher {
	pages := map[string]string{
		"https://example.test":       `<html><head><title>Home</title></head><body><a href="/about">About</a></body></html>`,
		"https://example.test/about": `<html><head><title>About</title></head><body></body></html>`,
	}
	return fetcherFunc(func(_ context.Context, url string) (string, error) {
		return pages[url], nil
	})
}

func TestDiscoverStep(t *testing.T) {
	t.Parallel()

	step := NewDiscoverStep(siteFetcher(), WithSchedulerOptions(
		crawler.WithBatchDelay(0),
	))
	if step.Name() != "discover" {
		t.Errorf("expected step name discover, got %q", step.Name())
	}

	job := NewJob("https://example.test")
	if err := step.Do(context.Background(), job); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}

	if job.Result == nil {
		t.Fatal("expected a crawl result on the job")
	}
	if job.Result.Site != "example.test" {
		t.Errorf("expected site example.test, got %q", job.Result.Site)
	}
	if job.Result.Stats.PagesProcessed != 2 {
		t.Errorf("expected 2 pages processed, got %d", job.Result.Stats.PagesProcessed)
	}
	if job.Result.Status != model.StatusComplete {
		t.Errorf("expected StatusComplete, got %v", job.Result.Status)
	}
}

func TestDiscoverStepInvalidSeed(t *testing.T) {
	t.Parallel()

	step := NewDiscoverStep(siteFetcher())
	job := NewJob("://not-a-url")
	if err := step.Do(context.Background(), job); err == nil {
		t.Error("expected error for invalid seed, got nil")
	}
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	cdb, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = cdb.Close() })

	step := NewPersistStep(cdb)
	if step.Name() != "persist" {
		t.Errorf("expected step name persist, got %q", step.Name())
	}

	t.Run("saves the result and records the row id", func(t *testing.T) {
		tree := model.NewPageTree("example.test")
		tree.Insert("https://example.test", "Home")
		job := NewJob("https://example.test")
		job.Result = &model.CrawlResult{
			Site:    "example.test",
			SeedURL: "https://example.test",
			Tree:    tree,
			Status:  model.StatusComplete,
		}

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("Do returned error: %v", err)
		}
		if job.CrawlID <= 0 {
			t.Errorf("expected positive crawl id, got %d", job.CrawlID)
		}
	})

	t.Run("fails when discovery has not run", func(t *testing.T) {
		if err := step.Do(context.Background(), NewJob("https://example.test")); err == nil {
			t.Error("expected error for missing result, got nil")
		}
	})
}

func TestReportStep(t *testing.T) {
	t.Parallel()

	t.Run("writes the report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		step := NewReportStep(report.NewTextWriter(&buf))
		if step.Name() != "report" {
			t.Errorf("expected step name report, got %q", step.Name())
		}

		tree := model.NewPageTree("example.test")
		tree.Insert("https://example.test", "Home")
		job := NewJob("https://example.test")
		job.Result = &model.CrawlResult{
			Site:    "example.test",
			SeedURL: "https://example.test",
			Tree:    tree,
			Status:  model.StatusComplete,
		}

		if err := step.Do(context.Background(), job); err != nil {
			t.Fatalf("Do returned error: %v", err)
		}
		if !strings.Contains(buf.String(), "example.test") {
			t.Errorf("expected site in report output:\n%s", buf.String())
		}
	})

	t.Run("fails when discovery has not run", func(t *testing.T) {
		t.Parallel()

		step := NewReportStep(report.NewTextWriter(&bytes.Buffer{}))
		if err := step.Do(context.Background(), NewJob("https://example.test")); err == nil {
			t.Error("expected error for missing result, got nil")
		}
	})
}
