package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one volunteer status repair pass",
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rep, err := svc.Reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "checked %d volunteers, repaired %d\n", rep.Checked, rep.RepairedCount)
	for _, r := range rep.Repaired {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s -> %s\n", r.VolunteerID, r.From, r.To)
	}
	return nil
}
