// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/pkg/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Replay and export the audit event log",
	Long: `Audit reads the append-only event log: every criteria change and flow
transition, ordered by timestamp with insertion order breaking ties. The
log is the source of truth for provenance; criteria and flow state are
re-derivable from it alone. Export writes a review's complete record
(question, criteria chain, snapshots, decisions, events) for archival.`,
}

var auditTrailCmd = &cobra.Command{
	Use:   "trail",
	Short: "Show a review's audit trail",
	RunE:  runAuditTrail,
}

func runAuditTrail(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}

	var since time.Time
	if raw, _ := cmd.Flags().GetString("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("--since %q: expected RFC 3339 timestamp: %w", raw, err)
		}
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Replay(context.Background(), reviewID, since)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}
	for _, e := range events {
		fmt.Printf("%s  %-16s  %-12s  %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.EventType, e.UserID, summarizeEvent(e))
	}
	return nil
}

func summarizeEvent(e types.ReviewEvent) string {
	switch e.EventType {
	case types.EventCriteriaUpdated:
		return fmt.Sprintf("criteria v%d -> v%d: %s",
			e.Criteria.OldVersion, e.Criteria.NewVersion, e.Criteria.Reason)
	case types.EventFlowAdvanced:
		return fmt.Sprintf("flow v%d -> v%d",
			e.Flow.PreviousVersion, e.Flow.Snapshot.Version)
	}
	return ""
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a review's complete audit record",
	RunE:  runAuditExport,
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), reviewID)
	case "json":
		path, err = store.ExportJSON(context.Background(), reviewID)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Exported to %s\n", path)
	return nil
}

func init() {
	auditTrailCmd.Flags().String("review", "", "review ID")
	auditTrailCmd.Flags().String("since", "", "only events at or after this RFC 3339 timestamp")
	auditTrailCmd.Flags().Bool("json", false, "output as JSON")

	auditExportCmd.Flags().String("review", "", "review ID")
	auditExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	auditCmd.AddCommand(auditTrailCmd)
	auditCmd.AddCommand(auditExportCmd)

	rootCmd.AddCommand(auditCmd)
}
