package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitemapper/internal/model"
)

// TextWriter outputs a plain-text site tree for terminal display.
// This is the default output format.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl result as a summary header followed by an
// indented tree of the discovered pages.
func (w *TextWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Site:   %s\n", result.Site)
	fmt.Fprintf(&sb, "Seed:   %s\n", result.SeedURL)
	fmt.Fprintf(&sb, "Status: %s\n", result.Status)
	fmt.Fprintf(&sb, "Pages:  %d discovered, %d processed (max depth %d)\n",
		result.Stats.PagesFound, result.Stats.PagesProcessed, result.Stats.CurrentDepth)
	fmt.Fprintf(&sb, "Time:   %s\n", result.Duration.Round(time.Millisecond))
	sb.WriteString("\n")

	if result.Tree != nil {
		sb.WriteString(nodeLabel(result.Tree))
		sb.WriteString("\n")
		renderChildren(&sb, result.Tree, "")
	}

	if len(result.Stats.FailedPages) > 0 {
		sb.WriteString("\nFailed pages:\n")
		for _, url := range result.Stats.FailedPages {
			fmt.Fprintf(&sb, "  - %s\n", url)
		}
	}

	return w.output.Write([]byte(sb.String()))
}

// renderChildren draws one tree level using box-drawing connectors.
// prefix accumulates the indentation of all ancestor levels.
func renderChildren(sb *strings.Builder, node *model.PageTreeNode, prefix string) {
	for i, child := range node.Children {
		connector := "├── "
		childPrefix := prefix + "│   "
		if i == len(node.Children)-1 {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(nodeLabel(child))
		sb.WriteString("\n")
		renderChildren(sb, child, childPrefix)
	}
}

// nodeLabel formats a single node: the segment name, plus the page title
// when the node corresponds to a fetched page.
func nodeLabel(node *model.PageTreeNode) string {
	if node.Page != nil && node.Page.Title != "" {
		return fmt.Sprintf("%s  (%s)", node.Name, node.Page.Title)
	}
	return node.Name
}
