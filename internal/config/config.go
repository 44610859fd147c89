package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These are deliberately conservative: the relay chain depends on public
// pass-through proxies that rate-limit aggressively, and many target
// sites do the same.
const (
	// DefaultMaxDepth limits how many link hops from the seed are
	// followed. Three levels reach most navigation-accessible pages
	// without wandering into pagination tails.
	DefaultMaxDepth = 3

	// DefaultMaxPages bounds the total number of pages ever enqueued.
	// This prevents runaway crawling on large or infinitely-generating
	// sites. Users can override this via the --max-pages CLI flag.
	DefaultMaxPages = 500

	// DefaultBatchSize is the number of pages fetched concurrently per
	// scheduler iteration. Small on purpose: a bigger batch mostly
	// trades politeness for relay rate-limit errors.
	DefaultBatchSize = 4

	// DefaultBatchDelay is the fixed wait between batches, a politeness
	// setting to avoid triggering upstream rate limiting.
	DefaultBatchDelay = 750 * time.Millisecond

	// DefaultTimeout is the per-request timeout. Relayed fetches hop
	// through an extra service, so this is more generous than a direct
	// crawler would need.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize limits the response body size to read. 5MB is
	// sufficient for most HTML pages while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent is sent with every request. A common browser
	// User-Agent avoids the trivial bot blocks that defeat the point of
	// the relay chain.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

	// AppName is the application name used for XDG directory paths.
	AppName = "sitemapper"
)

// Config holds all configuration options for sitemapper.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
type Config struct {
	// MaxDepth is the maximum crawl recursion depth.
	// Depth 0 means only fetch the seed page.
	MaxDepth int

	// MaxPages is the maximum number of pages ever enqueued per site.
	MaxPages int

	// BatchSize is the number of pages fetched concurrently per
	// scheduler iteration.
	BatchSize int

	// BatchDelay is the fixed wait between batches.
	BatchDelay time.Duration

	// Timeout is the per-request timeout for relay fetches.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// SOCKS5Proxy is an optional "host:port" SOCKS5 proxy for the
	// direct relay, for environments without direct egress.
	SOCKS5Proxy string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file. If empty,
	// the tool searches for .sitemapper in the current directory and
	// then in the user's home directory.
	ConfigFilePath string

	// FileConfig holds relay overrides loaded from the config file.
	FileConfig *File

	// MarkdownReport enables Markdown report output instead of the
	// human-readable tree (default).
	MarkdownReport bool

	// ReportFile is the output file path for the report. When set, the
	// report is written to this file instead of stdout. Directories are
	// created automatically if they don't exist.
	ReportFile string

	// SiteConcurrency is the number of seed sites crawled concurrently
	// when several are given.
	SiteConcurrency int

	// DBDir is the directory path for storing the SQLite database.
	// When set, crawl results are saved for historical comparison.
	// When empty, results are not persisted.
	DBDir string

	// SaveToDB indicates whether to save crawl results to the database.
	SaveToDB bool

	// Seeds is the list of seed URLs to crawl. A scheme is optional;
	// bare hostnames are normalized to https.
	Seeds []string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor instead of relying on zero
// values because most defaults are non-zero, and the constructor doubles
// as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:        DefaultMaxDepth,
		MaxPages:        DefaultMaxPages,
		BatchSize:       DefaultBatchSize,
		BatchDelay:      DefaultBatchDelay,
		Timeout:         DefaultTimeout,
		MaxBodySize:     DefaultMaxBodySize,
		UserAgent:       DefaultUserAgent,
		SiteConcurrency: 2,
	}
}

// XDGDataDir returns the XDG data directory for sitemapper.
// On Linux: ~/.local/share/sitemapper
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitemapper.
// On Linux: ~/.config/sitemapper
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid. It returns the first
// sentinel error found; fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.BatchDelay < 0 {
		return ErrInvalidBatchDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.SiteConcurrency <= 0 {
		return ErrInvalidSiteConcurrency
	}
	return nil
}
