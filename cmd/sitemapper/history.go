package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show previously mapped sites",
		Long: `History lists the crawls recorded in the local database.

Without arguments it lists every site that has been mapped. With a
site argument it shows that site's crawl history, newest first.

Examples:
  # List all mapped sites
  sitemapper history

  # Show crawl history for one site
  sitemapper history example.com

  # Print the latest recorded page tree for a site
  sitemapper history --tree example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("tree", false,
		"Print the latest recorded page tree instead of the crawl list")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// The database must already exist; history is read-only and should
	// not create an empty database as a side effect.
	db, err := database.Open(config.XDGDataDir(), database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no crawl history found (run 'sitemapper discover' first): %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	if len(args) == 0 {
		sites, err := db.ListCrawledSites(ctx)
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sites mapped yet.")
			return nil
		}
		for _, site := range sites {
			fmt.Fprintln(cmd.OutOrStdout(), site)
		}
		return nil
	}

	site := args[0]

	showTree, err := cmd.Flags().GetBool("tree")
	if err != nil {
		return err
	}
	if showTree {
		result, err := db.GetLatestCrawl(ctx, site)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("no crawls recorded for %s", site)
		}
		_, err = report.NewTextWriter(cmd.OutOrStdout()).Write(result)
		return err
	}

	history, err := db.GetCrawlHistory(ctx, site)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("no crawls recorded for %s", site)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tSTATUS\tPAGES\tDURATION")
	for _, meta := range history {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.Status,
			meta.PagesProcessed,
			meta.Duration,
		)
	}
	return w.Flush()
}
