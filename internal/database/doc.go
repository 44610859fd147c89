// Package database provides SQLite-based persistence for crawl results.
//
// Each finished crawl is stored as a session row with its full page tree
// serialized as JSON, plus denormalized per-page rows for URL queries.
// The database uses modernc.org/sqlite, a pure Go driver, so no CGO is
// required for cross-compilation.
package database
