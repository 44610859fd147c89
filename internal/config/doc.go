// Package config provides configuration structures and utilities for
// sitemapper. It defines crawl bounds, relay chain settings, report
// preferences, and the optional YAML configuration file.
package config
