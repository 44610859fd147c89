package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemapper/internal/model"
)

// CrawlDB provides SQLite-based storage for crawl results.
// It manages connection pooling and provides methods for saving and
// querying crawl history.
//
// Design decision: We use a single database file for all sites rather
// than separate files per site. This simplifies history queries across
// sites and backup/restore operations.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, "sitemapper.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer, so a single connection avoids
	// SQLITE_BUSY errors from the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Crawl sessions store one row per completed crawl, with the full
	-- page tree serialized as JSON for exact reconstruction.
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		seed_url TEXT NOT NULL,
		status TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		duration_ms INTEGER NOT NULL,
		pages_found INTEGER NOT NULL,
		pages_processed INTEGER NOT NULL,
		max_depth INTEGER NOT NULL,
		failed_pages TEXT,
		tree_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_site ON crawls(site);
	CREATE INDEX IF NOT EXISTS idx_crawls_timestamp ON crawls(timestamp);

	-- Pages are denormalized from the tree for per-URL queries without
	-- deserializing the whole tree.
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawl_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		title TEXT,
		UNIQUE(crawl_id, url),
		FOREIGN KEY(crawl_id) REFERENCES crawls(id)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_crawl ON pages(crawl_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlResult stores a finished crawl: one row in crawls with the
// serialized tree, plus one row per discovered page. The whole save is
// transactional so history never contains a half-written crawl.
func (cdb *CrawlDB) SaveCrawlResult(ctx context.Context, result *model.CrawlResult) (int64, error) {
	if result == nil || result.Tree == nil {
		return 0, fmt.Errorf("nothing to save: result has no page tree")
	}

	treeJSON, err := json.Marshal(result.Tree)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize page tree: %w", err)
	}

	var failedJSON []byte
	if len(result.Stats.FailedPages) > 0 {
		failedJSON, err = json.Marshal(result.Stats.FailedPages)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize failed pages: %w", err)
		}
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after Commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawls (site, seed_url, status, duration_ms, pages_found, pages_processed, max_depth, failed_pages, tree_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.Site,
		result.SeedURL,
		result.Status.String(),
		result.Duration.Milliseconds(),
		result.Stats.PagesFound,
		result.Stats.PagesProcessed,
		result.Stats.CurrentDepth,
		string(failedJSON),
		string(treeJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}

	crawlID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get crawl id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (crawl_id, url, path, title) VALUES (?, ?, ?, ?)
	ON CONFLICT(crawl_id, url) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // Statement cleanup

	var walkErr error
	result.Tree.Walk(func(node *model.PageTreeNode, _ int) {
		if walkErr != nil || node.Page == nil {
			return
		}
		if _, err := stmt.ExecContext(ctx, crawlID, node.Page.URL, node.Path, node.Page.Title); err != nil {
			walkErr = fmt.Errorf("failed to insert page %s: %w", node.Page.URL, err)
		}
	})
	if walkErr != nil {
		return 0, walkErr
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl: %w", err)
	}
	return crawlID, nil
}

// GetLatestCrawl retrieves the most recent crawl result for a site.
// It returns nil without error when the site has never been crawled.
func (cdb *CrawlDB) GetLatestCrawl(ctx context.Context, site string) (*model.CrawlResult, error) {
	query := `
	SELECT seed_url, status, duration_ms, pages_found, pages_processed, max_depth, failed_pages, tree_json
	FROM crawls
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var (
		seedURL    string
		status     string
		durationMS int64
		found      int
		processed  int
		maxDepth   int
		failedJSON sql.NullString
		treeJSON   string
	)
	err := cdb.db.QueryRowContext(ctx, query, site).Scan(
		&seedURL, &status, &durationMS, &found, &processed, &maxDepth, &failedJSON, &treeJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest crawl: %w", err)
	}

	var tree model.PageTreeNode
	if err := json.Unmarshal([]byte(treeJSON), &tree); err != nil {
		return nil, fmt.Errorf("failed to parse page tree: %w", err)
	}

	result := &model.CrawlResult{
		Site:     site,
		SeedURL:  seedURL,
		Tree:     &tree,
		Status:   parseStatus(status),
		Duration: time.Duration(durationMS) * time.Millisecond,
		Stats: model.CrawlStats{
			PagesFound:     found,
			PagesProcessed: processed,
			CurrentDepth:   maxDepth,
		},
	}
	if failedJSON.Valid && failedJSON.String != "" {
		if err := json.Unmarshal([]byte(failedJSON.String), &result.Stats.FailedPages); err != nil {
			return nil, fmt.Errorf("failed to parse failed pages: %w", err)
		}
	}
	return result, nil
}

// ListCrawledSites returns all sites that have at least one stored crawl.
func (cdb *CrawlDB) ListCrawledSites(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT site FROM crawls
	ORDER BY site
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// CrawlMetadata contains summary information about a stored crawl.
// This is used for displaying crawl history without loading the tree.
type CrawlMetadata struct {
	// ID is the unique identifier of the crawl in the database.
	ID int64

	// Site is the crawled site's hostname.
	Site string

	// SeedURL is the URL the crawl started from.
	SeedURL string

	// Status is the terminal crawl status as stored.
	Status string

	// Timestamp is when the crawl was saved.
	Timestamp time.Time

	// Duration is the wall-clock crawl time.
	Duration time.Duration

	// PagesFound and PagesProcessed are the final counters.
	PagesFound     int
	PagesProcessed int
}

// GetCrawlHistory retrieves crawl metadata for a site, newest first.
// This is more efficient than GetLatestCrawl when only metadata is needed.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, site string) ([]CrawlMetadata, error) {
	query := `
	SELECT id, site, seed_url, status, timestamp, duration_ms, pages_found, pages_processed
	FROM crawls
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlMetadata
	for rows.Next() {
		var meta CrawlMetadata
		var timestamp string
		var durationMS int64

		if err := rows.Scan(&meta.ID, &meta.Site, &meta.SeedURL, &meta.Status, &timestamp, &durationMS, &meta.PagesFound, &meta.PagesProcessed); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		meta.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListPages returns the URL and title of every page stored for a crawl,
// ordered by path for stable display.
func (cdb *CrawlDB) ListPages(ctx context.Context, crawlID int64) ([]model.PageInfo, error) {
	query := `
	SELECT url, title FROM pages
	WHERE crawl_id = ?
	ORDER BY path
	`

	rows, err := cdb.db.QueryContext(ctx, query, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []model.PageInfo
	for rows.Next() {
		var page model.PageInfo
		var title sql.NullString
		if err := rows.Scan(&page.URL, &title); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.Title = title.String
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// parseStatus maps stored status strings back to the enum. Unknown
// strings map to StatusError so stale rows never read as successful.
func parseStatus(s string) model.Status {
	for _, status := range []model.Status{
		model.StatusIdle, model.StatusCrawling, model.StatusPaused,
		model.StatusComplete, model.StatusError,
	} {
		if status.String() == s {
			return status
		}
	}
	return model.StatusError
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
