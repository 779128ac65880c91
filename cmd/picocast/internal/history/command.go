package history

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sipeed/picocast/cmd/picocast/internal"
	"github.com/sipeed/picocast/pkg/session"
)

func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List past episodes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig(false)
			if err != nil {
				return err
			}
			store, err := internal.OpenStore(cfg)
			if err != nil {
				return fmt.Errorf("open session ledger: %w", err)
			}
			if store == nil {
				return fmt.Errorf("no session ledger configured (storage.database_path)")
			}
			defer store.Close()

			rows, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of episodes to show")

	return cmd
}

func printRecords(w io.Writer, rows []session.Record) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No episodes recorded yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTURNS\tAUDIO\tLENGTH\tSTATUS\tFILE")
	for _, r := range rows {
		audio := fmt.Sprintf("%d/%d", r.Synthesized, r.Turns)
		if r.CoverageMismatch {
			audio += "!"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.Turns,
			audio,
			(time.Duration(r.DurationMS) * time.Millisecond).Round(100*time.Millisecond),
			r.Status,
			r.AudioPath,
		)
	}
	return tw.Flush()
}
