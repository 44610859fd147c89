package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitemapper/internal/model"
)

// MarkdownWriter outputs crawl results in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeSectionChart(md, result)
	w.writeTree(md, result)
	w.writeFailedPages(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Site Map: " + result.Site)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + result.SeedURL + "`"},
			{"Crawl Date", result.Stats.StartTime.Format("2006-01-02 15:04:05 MST")},
			{"Status", statusText(result)},
			{"Pages Discovered", strconv.Itoa(result.Stats.PagesFound)},
			{"Pages Processed", strconv.Itoa(result.Stats.PagesProcessed)},
			{"Max Depth Reached", strconv.Itoa(result.Stats.CurrentDepth)},
			{"Duration", result.Duration.Round(time.Millisecond).String()},
		},
	})
	md.PlainText("")

	switch {
	case result.Status == model.StatusError:
		md.Caution("The crawl failed before any page could be processed.")
	case len(result.Stats.FailedPages) > 0:
		md.Warningf("%d page(s) could not be fetched and are missing from the map.", len(result.Stats.FailedPages))
	default:
		md.Tip("All discovered pages were fetched successfully.")
	}
	md.PlainText("")
}

// statusText returns the status cell text based on the crawl outcome.
func statusText(result *model.CrawlResult) string {
	if result.Status == model.StatusError {
		return "❌ Error"
	}
	if len(result.Stats.FailedPages) > 0 {
		return "⚠️ Complete (partial)"
	}
	return "✅ Complete"
}

// writeSectionChart writes a mermaid pie chart of pages per top-level
// section. Skipped when the site has a single section, where the chart
// carries no information.
func (w *MarkdownWriter) writeSectionChart(md *markdown.Markdown, result *model.CrawlResult) {
	if result.Tree == nil || len(result.Tree.Children) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages per Section"),
		piechart.WithShowData(true),
	)

	for _, section := range result.Tree.Children {
		count := section.CountPages()
		if count == 0 {
			continue
		}
		chart.LabelAndIntValue(section.Name, uint64(count)) //nolint:gosec // CountPages is non-negative
	}

	md.H2("Section Distribution")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeTree writes the page hierarchy as a nested bullet list.
func (w *MarkdownWriter) writeTree(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Page Tree")
	md.PlainText("")

	if result.Tree == nil {
		md.PlainText("No pages discovered.")
		md.PlainText("")
		return
	}

	var sb strings.Builder
	writeTreeNode(&sb, result.Tree, 0)
	md.PlainText(strings.TrimRight(sb.String(), "\n"))
	md.PlainText("")
}

// writeTreeNode renders one node as a Markdown list item. Pages become
// links with their title, structural segments stay plain text.
func writeTreeNode(sb *strings.Builder, node *model.PageTreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	switch {
	case node.Page != nil && node.Page.Title != "":
		fmt.Fprintf(sb, "%s- [%s](%s)\n", indent, node.Page.Title, node.Page.URL)
	case node.Page != nil:
		fmt.Fprintf(sb, "%s- [%s](%s)\n", indent, node.Name, node.Page.URL)
	default:
		fmt.Fprintf(sb, "%s- %s\n", indent, node.Name)
	}
	for _, child := range node.Children {
		writeTreeNode(sb, child, depth+1)
	}
}

// writeFailedPages writes the list of pages whose fetch failed.
func (w *MarkdownWriter) writeFailedPages(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.Stats.FailedPages) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")
	items := make([]string, len(result.Stats.FailedPages))
	for i, url := range result.Stats.FailedPages {
		items[i] = "`" + url + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitemapper](https://github.com/nao1215/sitemapper)*")
}
