package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/report"
)

// DiscoverStep runs the crawl itself and attaches the result to the job.
// This is always the first step; later steps consume job.Result.
type DiscoverStep struct {
	// fetcher retrieves page HTML, typically a relay chain.
	fetcher crawler.Fetcher

	// opts configure the scheduler built for each job.
	opts []crawler.SchedulerOption

	// logger for structured logging.
	logger *slog.Logger
}

// DiscoverStepOption configures a DiscoverStep.
type DiscoverStepOption func(*DiscoverStep)

// WithDiscoverLogger sets a custom logger for the discovery step.
func WithDiscoverLogger(logger *slog.Logger) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.logger = logger
	}
}

// WithSchedulerOptions passes scheduler options through to each crawl.
// A fresh Scheduler is built per job, so options are safe to share.
func WithSchedulerOptions(opts ...crawler.SchedulerOption) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.opts = append(s.opts, opts...)
	}
}

// NewDiscoverStep creates a discovery step using the given fetcher.
func NewDiscoverStep(fetcher crawler.Fetcher, opts ...DiscoverStepOption) *DiscoverStep {
	s := &DiscoverStep{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do crawls the job's seed to completion and stores the result.
// Context cancellation stops the crawl; the partial result is kept so
// later steps can still persist and report what was found.
func (s *DiscoverStep) Do(ctx context.Context, job *Job) error {
	sched := crawler.New(s.fetcher, s.opts...)
	if err := sched.Start(ctx, job.Seed); err != nil {
		return fmt.Errorf("failed to start crawl of %s: %w", job.Seed, err)
	}

	select {
	case <-ctx.Done():
		sched.Stop()
		<-sched.Done()
	case <-sched.Done():
	}

	result := sched.Result()
	job.Result = &result

	s.logger.Info("crawl finished",
		"site", result.Site,
		"pages", result.Stats.PagesProcessed,
		"failed", len(result.Stats.FailedPages),
		"duration", result.Duration,
	)
	return nil
}

// PersistStep saves the crawl result to the history database.
type PersistStep struct {
	// db is the open crawl database.
	db *database.CrawlDB

	// logger for structured logging.
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persistence step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a persistence step writing to db.
func NewPersistStep(db *database.CrawlDB, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do saves the job's result and records the new row id on the job.
func (s *PersistStep) Do(ctx context.Context, job *Job) error {
	if job.Result == nil {
		return fmt.Errorf("nothing to persist for %s: discovery has not run", job.Seed)
	}

	id, err := s.db.SaveCrawlResult(ctx, job.Result)
	if err != nil {
		return fmt.Errorf("failed to save crawl of %s: %w", job.Result.Site, err)
	}
	job.CrawlID = id

	s.logger.Debug("crawl saved",
		"site", job.Result.Site,
		"crawl_id", id,
	)
	return nil
}

// ReportStep writes the crawl result with the configured report writer.
type ReportStep struct {
	// writer formats and outputs the result.
	writer report.Writer

	// logger for structured logging.
	logger *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// NewReportStep creates a report step using the given writer.
func NewReportStep(writer report.Writer, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		writer: writer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report for the job's result.
func (s *ReportStep) Do(_ context.Context, job *Job) error {
	if job.Result == nil {
		return fmt.Errorf("nothing to report for %s: discovery has not run", job.Seed)
	}

	n, err := s.writer.Write(job.Result)
	if err != nil {
		return fmt.Errorf("failed to write report for %s: %w", job.Result.Site, err)
	}

	s.logger.Debug("report written",
		"site", job.Result.Site,
		"bytes", n,
	)
	return nil
}
