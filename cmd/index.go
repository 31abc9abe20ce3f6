package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagMaxPages int

var indexCmd = &cobra.Command{
	Use:   "index [url]",
	Short: "Crawl and index wiki documentation",
	Long: `Crawls the wiki starting at the given URL (or the configured base
URL), extracts page text, and stores embedded chunks for search.
Re-indexing the same pages updates them in place.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&flagMaxPages, "max-pages", 0, "maximum number of pages to crawl (0 = default)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	baseURL := a.Config.Wiki.BaseURL
	if len(args) > 0 {
		baseURL = args[0]
	}
	if baseURL == "" {
		return fmt.Errorf("no wiki URL given and none configured")
	}

	fmt.Printf("Indexing %s ...\n", baseURL)
	indexed, err := a.Crawler.Crawl(ctx, baseURL, flagMaxPages)
	if err != nil {
		return fmt.Errorf("indexing wiki: %w", err)
	}

	fmt.Printf("Indexed %d pages.\n", indexed)
	return nil
}
