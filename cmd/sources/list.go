package sources

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/docscraper/cmd/common"
	internalsources "github.com/jonesrussell/docscraper/internal/sources"
)

// RenderTable writes every source, enabled or not, as a table.
func RenderTable(out io.Writer, reg *internalsources.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Kind", "URL", "Templates", "Enabled"})

	for _, src := range reg.All() {
		switch s := src.(type) {
		case internalsources.SearchSource:
			t.AppendRow(table.Row{s.Name, s.Kind(), s.BaseURL, strings.Join(s.Templates, " "), s.Enabled})
		case internalsources.DirectSource:
			t.AppendRow(table.Row{s.Name, s.Kind(), s.URL, "", s.Enabled})
		}
	}
	t.Render()
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			reg, err := deps.Config.Sources.Registry()
			if err != nil {
				return fmt.Errorf("failed to load sources: %w", err)
			}
			RenderTable(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}
