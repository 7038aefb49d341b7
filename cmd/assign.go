package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevaops/seva/core/dispatch"
)

var assignBatch int

var assignCmd = &cobra.Command{
	Use:   "assign [request-id]",
	Short: "Auto-assign one request, or a batch of pending requests",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAssign,
}

func init() {
	assignCmd.Flags().IntVar(&assignBatch, "batch", 0, "process up to N pending requests instead of a single id")
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(args) == 1 {
		res, err := svc.Manager.AutoAssign(ctx, args[0])
		if err != nil {
			var sbe *dispatch.ScoreBelowThresholdError
			if errors.As(err, &sbe) {
				fmt.Fprintf(cmd.OutOrStdout(), "no assignment: best score %.2f below threshold %.2f\n", sbe.Score, sbe.Threshold)
				return nil
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "assigned %s to volunteer %s (score %.2f)\n",
			args[0], res.VolunteerID, res.Score)
		return nil
	}

	if assignBatch <= 0 {
		return fmt.Errorf("provide a request id or --batch N")
	}
	res, err := svc.Manager.BatchAutoAssign(ctx, assignBatch, svc.Manager.MinScore())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "processed %d requests: %d assigned, %d skipped\n",
		len(res.Details), res.AssignedCount, res.FailedCount)
	return nil
}
