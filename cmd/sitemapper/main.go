// Package main provides the entry point for the sitemapper CLI.
//
// sitemapper maps public websites by crawling same-origin links and
// building a hierarchical page tree. Fetches go through a chain of
// fallback relays so that sites blocking automated access can often
// still be mapped.
//
// Usage:
//
//	sitemapper discover https://example.com
//	sitemapper history example.com
//
// See --help for all available options.
package main

// main is the entry point for sitemapper.
func main() {
	Execute()
}
