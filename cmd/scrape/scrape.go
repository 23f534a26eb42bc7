// Package scrape implements the scrape command, which performs one run.
package scrape

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/docscraper/cmd/common"
	"github.com/jonesrussell/docscraper/internal/logger"
	"github.com/jonesrussell/docscraper/internal/report"
)

// Command returns the scrape command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Search all sources and download matching documents",
		Long: `Search every enabled source for each search keyword, download documents whose
title or URL mentions a required keyword, and stop once max-downloads is reached.
A manifest and a configuration snapshot are written to the output directory.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd)
		},
		RunE: run,
	}

	cmd.Flags().Int("max-downloads", 0, "stop after this many successful downloads")
	cmd.Flags().String("output-dir", "", "directory for downloaded documents and reports")
	cmd.Flags().Int("concurrency", 0, "number of pages processed in parallel")
	cmd.Flags().StringSlice("keywords", nil, "search keywords (overrides scraper.search_keywords)")
	return cmd
}

func bindFlags(cmd *cobra.Command) error {
	flags := map[string]string{
		"max-downloads": "scraper.max_downloads",
		"output-dir":    "scraper.output_dir",
		"concurrency":   "scraper.concurrency",
		"keywords":      "scraper.search_keywords",
	}
	for flag, key := range flags {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", flag, err)
		}
	}
	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to get dependencies: %w", err)
	}
	defer func() { _ = deps.Logger.Sync() }()

	pipeline, err := common.NewPipeline(cmd.Context(), deps)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			deps.Logger.Warn("Failed to close pipeline", logger.Error(closeErr))
		}
	}()

	r, err := pipeline.Service.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report.RenderSummary(out, r)
	fmt.Fprintf(out, "\nManifest: %s\n", pipeline.Reports.ManifestPath())
	if r.Cancelled {
		return fmt.Errorf("run %s cancelled after %d downloads", r.RunID, r.Stats.Downloaded)
	}
	return nil
}
