package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/report"
)

// testLogger returns a logger that discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestNewDiscoverCmd tests the discover command creation.
func TestNewDiscoverCmd(t *testing.T) {
	t.Parallel()

	cmd := NewDiscoverCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "discover [url]" {
			t.Errorf("expected use 'discover [url]', got %q", cmd.Use)
		}
	})

	t.Run("has expected flags", func(t *testing.T) {
		t.Parallel()
		for flag, shorthand := range map[string]string{
			"depth":       "d",
			"max-pages":   "p",
			"batch":       "b",
			"timeout":     "t",
			"socks5":      "s",
			"config":      "c",
			"markdown":    "m",
			"output":      "o",
			"concurrency": "C",
			"user-agent":  "u",
		} {
			f := cmd.Flags().Lookup(flag)
			if f == nil {
				t.Errorf("expected %s flag", flag)
				continue
			}
			if f.Shorthand != shorthand {
				t.Errorf("flag %s: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
			}
		}
		for _, flag := range []string{"delay", "max-body-size", "no-save"} {
			if cmd.Flags().Lookup(flag) == nil {
				t.Errorf("expected %s flag", flag)
			}
		}
	})
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults with a seed", func(t *testing.T) {
		t.Parallel()

		cmd := NewDiscoverCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("ParseFlags returned error: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("buildConfig returned error: %v", err)
		}
		if cfg.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("expected default depth, got %d", cfg.MaxDepth)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB by default")
		}
		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://example.com" {
			t.Errorf("expected seed recorded, got %v", cfg.Seeds)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewDiscoverCmd()
		args := []string{"-d", "1", "-p", "25", "--delay", "0s", "--no-save", "-m"}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("ParseFlags returned error: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("buildConfig returned error: %v", err)
		}
		if cfg.MaxDepth != 1 {
			t.Errorf("expected depth 1, got %d", cfg.MaxDepth)
		}
		if cfg.MaxPages != 25 {
			t.Errorf("expected 25 pages, got %d", cfg.MaxPages)
		}
		if cfg.BatchDelay != 0 {
			t.Errorf("expected zero delay, got %v", cfg.BatchDelay)
		}
		if cfg.SaveToDB {
			t.Error("expected SaveToDB disabled by --no-save")
		}
		if !cfg.MarkdownReport {
			t.Error("expected markdown report enabled")
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewDiscoverCmd()
		missing := filepath.Join(t.TempDir(), "nope.yml")
		if err := cmd.ParseFlags([]string{"-c", missing}); err != nil {
			t.Fatalf("ParseFlags returned error: %v", err)
		}

		if _, err := buildConfig(cmd, []string{"example.com"}); err == nil {
			t.Error("expected error for missing config file, got nil")
		}
	})

	t.Run("relay overrides load from config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), configFileName)
		content := "relays:\n  - name: mine\n    kind: direct\nreplace: true\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewDiscoverCmd()
		if err := cmd.ParseFlags([]string{"-c", path}); err != nil {
			t.Fatalf("ParseFlags returned error: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"example.com"})
		if err != nil {
			t.Fatalf("buildConfig returned error: %v", err)
		}
		if cfg.FileConfig == nil || len(cfg.FileConfig.Relays) != 1 {
			t.Fatalf("expected 1 relay override, got %+v", cfg.FileConfig)
		}
	})
}

func TestBuildChain(t *testing.T) {
	t.Parallel()

	t.Run("default chain", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		chain, err := buildChain(cfg, testLogger())
		if err != nil {
			t.Fatalf("buildChain returned error: %v", err)
		}
		if len(chain.Relays()) != 4 {
			t.Errorf("expected 4 default relays, got %d", len(chain.Relays()))
		}
	})

	t.Run("replace via file config", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.FileConfig = &config.File{
			Relays:  []config.RelayEntry{{Name: "only", Kind: "direct"}},
			Replace: true,
		}
		chain, err := buildChain(cfg, testLogger())
		if err != nil {
			t.Fatalf("buildChain returned error: %v", err)
		}
		if len(chain.Relays()) != 1 {
			t.Errorf("expected 1 relay, got %d", len(chain.Relays()))
		}
	})

	t.Run("invalid socks5 address is an error", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SOCKS5Proxy = "not an address"
		if _, err := buildChain(cfg, testLogger()); err == nil {
			t.Error("expected error for invalid proxy address, got nil")
		}
	})
}

func TestBuildReportWriter(t *testing.T) {
	t.Parallel()

	t.Run("text writer to stdout by default", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		w, closeOutput, err := buildReportWriter(cfg)
		if err != nil {
			t.Fatalf("buildReportWriter returned error: %v", err)
		}
		defer closeOutput()
		if _, ok := w.(*report.TextWriter); !ok {
			t.Errorf("expected *report.TextWriter, got %T", w)
		}
	})

	t.Run("markdown writer to file with directories", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.MarkdownReport = true
		cfg.ReportFile = filepath.Join(t.TempDir(), "out", "map.md")

		w, closeOutput, err := buildReportWriter(cfg)
		if err != nil {
			t.Fatalf("buildReportWriter returned error: %v", err)
		}
		if _, ok := w.(*report.MarkdownWriter); !ok {
			t.Errorf("expected *report.MarkdownWriter, got %T", w)
		}
		closeOutput()

		if _, err := os.Stat(cfg.ReportFile); err != nil {
			t.Errorf("expected report file to exist: %v", err)
		}
	})
}

func TestProgressPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := newProgressPrinter(&buf)

	state := &model.CrawlState{Status: model.StatusCrawling}
	state.Stats.PagesProcessed = 3
	state.Stats.PagesFound = 10
	state.Stats.EstimatedTotal = 40
	state.Stats.CurrentDepth = 1
	p.OnProgress(state)

	out := buf.String()
	if !strings.Contains(out, "3/~40 pages") {
		t.Errorf("expected estimate in progress line, got %q", out)
	}
	if strings.Contains(out, "\n") {
		t.Errorf("expected no newline while crawling, got %q", out)
	}

	state.Status = model.StatusComplete
	p.OnProgress(state)
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("expected trailing newline at terminal status")
	}
}

// TestDiscoverEndToEnd maps a small local site through the real command.
func TestDiscoverEndToEnd(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body><a href="/about">About</a><a href="/docs/intro">Docs</a></body></html>`))
		case "/about":
			_, _ = w.Write([]byte(`<html><head><title>About</title></head><body></body></html>`))
		case "/docs/intro":
			_, _ = w.Write([]byte(`<html><head><title>Intro</title></head><body></body></html>`))
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out := filepath.Join(t.TempDir(), "map.txt")
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"discover", "--no-save", "--delay", "0s", "-o", out, srv.URL})

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Execute returned error: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("discover command timed out")
	}

	data, err := os.ReadFile(out) //nolint:gosec // Test-controlled path
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	text := string(data)
	for _, want := range []string{"Status: complete", "about  (About)", "intro  (Intro)"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
