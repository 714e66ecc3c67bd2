package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var patternID string
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show auto-response acceptance statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openConfiguredStores()
			if err != nil {
				return err
			}
			defer stores.Close()

			until := time.Now().UTC()
			since := until.AddDate(0, 0, -days)
			summary, err := stores.Stats.Summarize(context.Background(), patternID, since, until)
			if err != nil {
				return err
			}

			fmt.Printf("window: last %d day(s)\n", days)
			fmt.Printf("total=%d accepted=%d rejected=%d pending=%d acceptance_rate=%.2f%%\n",
				summary.Total, summary.Accepted, summary.Rejected, summary.Pending,
				summary.AcceptanceRate*100)
			for id, ps := range summary.Patterns {
				fmt.Printf("  %-20s total=%d accepted=%d\n", id, ps.Total, ps.Accepted)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&patternID, "pattern", "", "scope to one pattern id")
	cmd.Flags().IntVar(&days, "days", 7, "aggregation window in days")
	return cmd
}
