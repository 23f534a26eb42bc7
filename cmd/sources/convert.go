package sources

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/docscraper/cmd/common"
	internalsources "github.com/jonesrussell/docscraper/internal/sources"
)

func newImportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Convert a source spreadsheet into a YAML sources file",
		Long: `Read sources from the first sheet of an XLSX workbook with the columns
kind, name, url, templates and enabled, and write them as YAML. Invalid rows are
reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer in.Close()

			spec, rowErrs, err := internalsources.ImportXLSX(in)
			if err != nil {
				return err
			}
			for _, rowErr := range rowErrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %v\n", rowErr)
			}
			if spec.Len() == 0 {
				return internalsources.ErrNoSources
			}
			if _, regErr := spec.Registry(); regErr != nil {
				return fmt.Errorf("imported sources are invalid: %w", regErr)
			}

			if writeErr := internalsources.WriteFile(output, spec); writeErr != nil {
				return writeErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sources into %s\n", spec.Len(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "sources.yaml", "YAML file to write")
	return cmd
}

func newExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the configured sources to an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create workbook: %w", err)
			}
			defer func() { err = errors.Join(err, out.Close()) }()

			if exportErr := internalsources.ExportXLSX(out, deps.Config.Sources); exportErr != nil {
				return exportErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sources to %s\n", deps.Config.Sources.Len(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "sources.xlsx", "workbook to write")
	return cmd
}
