// Package model defines the data structures shared across the site
// discovery engine.
//
// The central types are:
//
//   - CrawlTask: one planned page fetch in the scheduler's queue
//   - CrawlStats: aggregate counters for a crawl run
//   - PageTreeNode: one node of the discovered page hierarchy
//   - CrawlState: the full snapshot handed to progress observers
//   - CrawlResult: the immutable summary of a finished crawl
//
// Design decision: These types live in their own package rather than in
// the crawler package because:
//  1. The database and report packages consume them without importing
//     the crawler
//  2. Progress observers receive them across the package boundary
//  3. Tree insertion can be unit-tested without any network dependency
package model
