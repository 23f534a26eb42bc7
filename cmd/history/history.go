// Package history implements the history command, which lists past runs.
package history

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/docscraper/cmd/common"
	"github.com/jonesrussell/docscraper/internal/domain"
	internalhistory "github.com/jonesrussell/docscraper/internal/history"
)

// Command returns the history command.
func Command() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the documents of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}
			if !deps.Config.History.Enabled {
				return errors.New("run history is disabled (set history.enabled)")
			}

			store, err := common.OpenHistory(cmd.Context(), deps.Config.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				docs, docsErr := store.Documents(cmd.Context(), args[0])
				if docsErr != nil {
					return docsErr
				}
				renderDocuments(cmd.OutOrStdout(), docs)
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", internalhistory.DefaultListLimit, "number of runs to show")
	return cmd
}

func renderRuns(out io.Writer, runs []internalhistory.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Started", "Duration", "Downloaded", "Accepted", "Failures", "Outcome"})
	for _, r := range runs {
		outcome := "completed"
		switch {
		case r.Cancelled:
			outcome = "cancelled"
		case r.CapReached:
			outcome = "cap reached"
		}
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Second),
			fmt.Sprintf("%d/%d", r.Downloaded, r.MaxDownloads),
			r.Accepted,
			r.Failures,
			outcome,
		})
	}
	t.Render()
}

func renderDocuments(out io.Writer, docs []domain.Document) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Source", "Status", "URL"})
	for _, d := range docs {
		t.AppendRow(table.Row{d.Index, d.Title, d.SourceName, d.Status, d.URL})
	}
	t.Render()
}
