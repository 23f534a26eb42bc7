// Package tables implements the tables command, which exports every HTML
// table on a page.
package tables

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/docscraper/cmd/common"
	"github.com/jonesrussell/docscraper/internal/config"
	"github.com/jonesrussell/docscraper/internal/logger"
	internaltables "github.com/jonesrussell/docscraper/internal/tables"
)

// Command returns the tables command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables <url>",
		Short: "Extract every table on a page to CSV or XLSX",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			for flag, key := range map[string]string{
				"format":     "tables.format",
				"output-dir": "tables.output_dir",
				"workbook":   "tables.workbook",
			} {
				if !cmd.Flags().Changed(flag) {
					continue
				}
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("failed to bind %s flag: %w", flag, err)
				}
			}
			return nil
		},
		RunE: run,
	}
	cmd.Flags().String("format", "", "output format: csv, xlsx or both")
	cmd.Flags().String("output-dir", "", "directory for table files")
	cmd.Flags().String("workbook", "", "workbook file name for xlsx output")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to get dependencies: %w", err)
	}
	cfg := deps.Config

	scraper := internaltables.New(internaltables.Config{
		UserAgent:        cfg.Fetch.UserAgent,
		Timeout:          cfg.Fetch.Timeout,
		RespectRobotsTxt: cfg.Fetch.RespectRobotsTxt,
		MaxBodyBytes:     int(cfg.Fetch.MaxBodyBytes),
	}, deps.Logger)

	found, err := scraper.Scrape(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Found %d tables\n", len(found))
	if len(found) == 0 {
		return nil
	}

	if cfg.Tables.Format == config.FormatCSV || cfg.Tables.Format == config.FormatBoth {
		paths, writeErr := internaltables.WriteCSV(cfg.Tables.OutputDir, found)
		for _, p := range paths {
			fmt.Fprintf(out, "Saved %s\n", p)
		}
		if writeErr != nil {
			return writeErr
		}
	}
	if cfg.Tables.Format == config.FormatXLSX || cfg.Tables.Format == config.FormatBoth {
		path := filepath.Join(cfg.Tables.OutputDir, cfg.Tables.Workbook)
		if writeErr := internaltables.WriteXLSX(path, found); writeErr != nil {
			return writeErr
		}
		fmt.Fprintf(out, "Saved %s\n", path)
	}

	deps.Logger.Info("Table export complete",
		logger.String("url", args[0]),
		logger.Int("tables", len(found)),
		logger.String("format", cfg.Tables.Format),
	)
	return nil
}
