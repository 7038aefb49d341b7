package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevaops/seva/pkg/export"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <request-id>",
	Short: "Export a request's assignment history",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or csv")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recs, err := svc.Store.GetAssignmentsForRequest(ctx, args[0])
	if err != nil {
		return err
	}
	switch exportFormat {
	case "json":
		return export.WriteJSON(cmd.OutOrStdout(), recs)
	case "csv":
		return export.WriteCSV(cmd.OutOrStdout(), recs)
	default:
		return fmt.Errorf("unknown format %s", exportFormat)
	}
}
