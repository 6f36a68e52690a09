package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gallery/internal/store"
	"gallery/internal/upload"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent upload attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				out := cmd.OutOrStdout()
				if clearAll {
					removed, err := st.ClearUploads(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d history entries\n", removed)
					return nil
				}
				records, err := st.RecentUploads(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No uploads recorded")
					return nil
				}
				fmt.Fprintln(out, renderHistory(records, newPalette(out)))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all history entries")
	return cmd
}

func renderHistory(records []store.UploadRecord, p palette) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.FileName,
			truncate(valueOrDash(rec.Title), 32),
			fmt.Sprintf("%d", rec.Batch),
			p.status(upload.Status(rec.Status)),
			rec.Duration.Round(time.Millisecond).String(),
			truncate(valueOrDash(rec.ErrorMessage), 48),
		})
	}
	return renderTable(
		[]string{"When", "File", "Title", "Batch", "Status", "Took", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	)
}
