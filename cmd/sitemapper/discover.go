package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/log"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/pipeline"
	"github.com/nao1215/sitemapper/internal/relay"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/spf13/cobra"
)

// NewDiscoverCmd creates the discover command.
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover [url]",
		Short: "Crawl a site and build its page map",
		Long: `Discover crawls a website breadth-first from the given seed URL,
follows same-origin links, and prints the discovered page hierarchy.

Pages are fetched through a chain of fallback relays: direct first,
then public pass-through proxies, and finally a rendering service for
sites that block plain HTTP clients.

Examples:
  # Map a single site
  sitemapper discover https://example.com

  # A bare hostname defaults to https
  sitemapper discover example.com

  # Map several sites concurrently
  sitemapper discover site1.example site2.example site3.example

  # Shallow, fast map
  sitemapper discover -d 1 -p 50 example.com

  # Markdown report written to a file
  sitemapper discover -m -o docs/sitemap.md example.com

  # Route direct fetches through a SOCKS5 proxy
  sitemapper discover -s 127.0.0.1:1080 example.com

Configuration file (.sitemapper) example:
  relays:
    - name: internal-proxy
      kind: proxy
      endpoint: "https://proxy.corp.example/raw?url={url}"
      headers:
        X-Requested-With: XMLHttpRequest
  replace: false`,
		Args: cobra.ArbitraryArgs,
		RunE: runDiscoverCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl recursion depth (0 fetches only the seed page)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to discover per site")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of pages fetched concurrently per batch")
	cmd.Flags().Duration("delay", config.DefaultBatchDelay,
		"Wait between fetch batches")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Network flags
	cmd.Flags().StringP("socks5", "s", "",
		"Route direct fetches through a SOCKS5 proxy (e.g., 127.0.0.1:1080)")

	// Multi-site flags
	cmd.Flags().IntP("concurrency", "C", 2,
		"Number of sites crawled concurrently when several seeds are given")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemapper in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report instead of the plain-text tree")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false,
		"Do not record the crawl in the local history database")

	return cmd
}

// runDiscoverCmd executes the discover command.
func runDiscoverCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with credential sanitization
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runDiscover(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.BatchDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.SOCKS5Proxy, err = cmd.Flags().GetString("socks5")
	if err != nil {
		return nil, err
	}

	cfg.SiteConcurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load relay overrides from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently skip when no file is found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.FileConfig, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir = config.XDGDataDir()

	cfg.Verbose = getVerboseFlag(cmd)

	// Positional arguments are seed URLs
	cfg.Seeds = args

	return cfg, nil
}

// runDiscover executes the crawl workflow.
func runDiscover(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting discovery",
		"seeds", cfg.Seeds,
		"maxDepth", cfg.MaxDepth,
		"maxPages", cfg.MaxPages,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	chain, err := buildChain(cfg, logger)
	if err != nil {
		return err
	}

	writer, closeOutput, err := buildReportWriter(cfg)
	if err != nil {
		return err
	}
	defer closeOutput()

	if len(cfg.Seeds) > 1 && cfg.SiteConcurrency > 1 {
		return runBatchDiscover(ctx, cfg, chain, db, writer, logger)
	}
	return runSequentialDiscover(ctx, cfg, chain, db, writer, logger)
}

// runSequentialDiscover maps seeds one at a time with live progress.
func runSequentialDiscover(ctx context.Context, cfg *config.Config, chain *relay.Chain, db *database.CrawlDB, writer report.Writer, logger *slog.Logger) error {
	for _, seed := range cfg.Seeds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprintf(os.Stderr, "Mapping %s...\n", seed)
		startTime := time.Now()

		progress := newProgressPrinter(os.Stderr)
		p := newPipeline(cfg, chain, db, writer, logger, progress)

		job := pipeline.NewJob(seed)
		if err := p.Execute(ctx, job); err != nil {
			logger.Error("discovery failed", "seed", seed, "error", err)
			fmt.Fprintf(os.Stderr, "Discovery error for %s: %v\n", seed, err)
			continue
		}
		for _, stepErr := range job.Errs {
			fmt.Fprintf(os.Stderr, "Warning for %s: %v\n", seed, stepErr)
		}

		elapsed := time.Since(startTime)
		fmt.Fprintf(os.Stderr, "Mapped in %s\n\n", elapsed.Round(time.Millisecond))
	}

	return nil
}

// runBatchDiscover maps multiple seeds concurrently using BatchProcessor.
// Live progress is disabled in batch mode because interleaved progress
// lines from concurrent crawls are unreadable.
func runBatchDiscover(ctx context.Context, cfg *config.Config, chain *relay.Chain, db *database.CrawlDB, writer report.Writer, logger *slog.Logger) error {
	fmt.Fprintf(os.Stderr, "Starting batch discovery of %d sites (concurrency: %d)...\n\n",
		len(cfg.Seeds), cfg.SiteConcurrency)

	startTime := time.Now()

	// Reports go through a mutex-guarded writer so concurrent crawls
	// don't interleave output.
	var mu sync.Mutex
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return newPipeline(cfg, chain, db, lockedWriter{mu: &mu, w: writer}, logger, nil)
		},
		pipeline.WithConcurrency(cfg.SiteConcurrency),
		pipeline.WithBatchLogger(logger),
	)

	err := bp.ProcessBatchWithCallback(ctx, cfg.Seeds, func(job *pipeline.Job, index int) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(os.Stderr, "[%d/%d] Mapped: %s\n", index+1, len(cfg.Seeds), job.Seed)
		for _, stepErr := range job.Errs {
			fmt.Fprintf(os.Stderr, "Warning for %s: %v\n", job.Seed, stepErr)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "\nBatch discovery completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// newPipeline assembles the discover/persist/report pipeline for one crawl.
func newPipeline(cfg *config.Config, chain *relay.Chain, db *database.CrawlDB, writer report.Writer, logger *slog.Logger, progress crawler.ProgressReporter) *pipeline.Pipeline {
	schedOpts := []crawler.SchedulerOption{
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithBatchSize(cfg.BatchSize),
		crawler.WithBatchDelay(cfg.BatchDelay),
		crawler.WithSchedulerLogger(logger),
	}
	if progress != nil {
		schedOpts = append(schedOpts, crawler.WithProgress(progress))
	}

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)
	p.AddStep(pipeline.NewDiscoverStep(chain,
		pipeline.WithDiscoverLogger(logger),
		pipeline.WithSchedulerOptions(schedOpts...),
	))
	if db != nil {
		p.AddStep(pipeline.NewPersistStep(db, pipeline.WithPersistLogger(logger)))
	}
	p.AddStep(pipeline.NewReportStep(writer, pipeline.WithReportLogger(logger)))
	return p
}

// buildChain creates the relay fetch chain from configuration.
func buildChain(cfg *config.Config, logger *slog.Logger) (*relay.Chain, error) {
	relays := relay.DefaultRelays()
	if cfg.FileConfig != nil {
		var err error
		relays, err = cfg.FileConfig.RelayChain()
		if err != nil {
			return nil, fmt.Errorf("invalid relay configuration: %w", err)
		}
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.SOCKS5Proxy != "" {
		var err error
		client, err = relay.NewSOCKS5Client(cfg.SOCKS5Proxy, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 client: %w", err)
		}
	}

	return relay.NewChain(
		relay.WithRelays(relays),
		relay.WithHTTPClient(client),
		relay.WithUserAgent(cfg.UserAgent),
		relay.WithMaxBodySize(cfg.MaxBodySize),
		relay.WithLogger(logger),
	), nil
}

// buildReportWriter creates the report writer for the configured format
// and destination. The returned function closes the destination file,
// if any.
func buildReportWriter(cfg *config.Config) (report.Writer, func(), error) {
	var output io.Writer = os.Stdout
	closeOutput := func() {}

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		output = f
		closeOutput = func() { _ = f.Close() }
	}

	if cfg.MarkdownReport {
		return report.NewMarkdownWriter(output), closeOutput, nil
	}
	return report.NewTextWriter(output), closeOutput, nil
}

// lockedWriter serializes Write calls from concurrent pipelines.
type lockedWriter struct {
	mu *sync.Mutex
	w  report.Writer
}

// Write acquires the shared lock and delegates to the wrapped writer.
func (lw lockedWriter) Write(result *model.CrawlResult) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(result)
}

// progressPrinter renders crawl progress as a single updating line.
type progressPrinter struct {
	out io.Writer
}

// newProgressPrinter creates a progress printer writing to out.
func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

// OnProgress rewrites the progress line in place. A terminal snapshot
// gets a trailing newline so following output starts clean.
func (p *progressPrinter) OnProgress(state *model.CrawlState) {
	stats := state.Stats
	line := fmt.Sprintf("\r%s: %d/%d pages (depth %d)",
		state.Status, stats.PagesProcessed, stats.PagesFound, stats.CurrentDepth)
	if stats.EstimatedTotal > stats.PagesFound {
		line = fmt.Sprintf("\r%s: %d/~%d pages (depth %d)",
			state.Status, stats.PagesProcessed, stats.EstimatedTotal, stats.CurrentDepth)
	}
	fmt.Fprint(p.out, line)
	if state.Status.Terminal() {
		fmt.Fprintln(p.out)
	}
}
