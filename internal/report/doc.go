// Package report formats crawl results for humans.
//
// Two formats are provided: a plain-text site tree for terminal output
// and a Markdown report for documentation and sharing. Both implement
// the Writer interface, and MultiWriter fans a result out to several
// destinations at once.
package report
