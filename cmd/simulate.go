package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevaops/seva/simulator"
)

var (
	simVolunteers int
	simRequests   int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Seed synthetic load and run the matcher over it",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simVolunteers, "volunteers", 50, "number of synthetic volunteers")
	simulateCmd.Flags().IntVar(&simRequests, "requests", 20, "number of synthetic requests")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	seeder, ok := svc.Store.(simulator.Seeder)
	if !ok {
		return fmt.Errorf("simulate requires the memory store backend")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := simulator.Run(ctx, simulator.Config{Volunteers: simVolunteers, Requests: simRequests}, seeder, svc.Manager)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d volunteers and %d requests: %d assigned, %d skipped\n",
		res.Volunteers, res.Requests, res.Assigned, res.Skipped)
	return nil
}
