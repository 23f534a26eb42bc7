// Package sources implements commands for inspecting and converting the
// configured source list.
package sources

import (
	"github.com/spf13/cobra"
)

// Command returns the sources command and its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage search and direct sources",
	}
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newImportCommand())
	cmd.AddCommand(newExportCommand())
	return cmd
}
