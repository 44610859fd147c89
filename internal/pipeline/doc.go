// Package pipeline orchestrates the crawl workflow.
//
// A Pipeline runs an ordered list of Steps over a Job: discover the
// site, persist the result, write reports. BatchProcessor runs one
// pipeline per seed with a concurrency limit for multi-site crawls.
package pipeline
