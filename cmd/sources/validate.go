package sources

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/docscraper/cmd/common"
	internalsources "github.com/jonesrussell/docscraper/internal/sources"
)

func newValidateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configured sources or a standalone sources file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var spec internalsources.File
			if file != "" {
				loaded, err := internalsources.LoadFile(file)
				if err != nil {
					return err
				}
				spec = loaded
			} else {
				deps, err := common.NewCommandDeps()
				if err != nil {
					return fmt.Errorf("failed to get dependencies: %w", err)
				}
				spec = deps.Config.Sources
			}

			reg, err := spec.Registry()
			if err != nil {
				return fmt.Errorf("sources are invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d search and %d direct sources are valid (%d enabled)\n",
				len(spec.Search), len(spec.Direct), len(reg.Search())+len(reg.Direct()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a top-level sources key")
	return cmd
}
