// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/ledger"
	"github.com/pdiddy/screening-engine/pkg/types"
)

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Advance and inspect the PRISMA flow-accounting chain",
	Long: `Flow maintains the PRISMA funnel as an immutable chain of snapshots.
Apply states the head version a delta was computed against; a stale
version fails with a conflict, and a delta that breaks the funnel's
conservation arithmetic is rejected wholesale with the head unchanged.
Corrections are compensating deltas, never edits.`,
}

var flowApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a validated delta, appending the next snapshot version",
	Long: `Apply adjusts one or more funnel sections:

  flow apply --review ID --expected-version 2 --user js \
      --set database_records=1000 --source database_records:PubMed=800 \
      --set duplicates=200 --note duplicates="dedup via DOI match"

Counts add (negative deltas allowed, negative results are not), source
breakdowns merge additively, and a non-empty note replaces the section's
notes.`,
	RunE: runFlowApply,
}

func runFlowApply(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}
	expectedVersion, _ := cmd.Flags().GetInt("expected-version")
	user, _ := cmd.Flags().GetString("user")
	sets, _ := cmd.Flags().GetStringArray("set")
	sources, _ := cmd.Flags().GetStringArray("source")
	notes, _ := cmd.Flags().GetStringArray("note")

	delta, err := buildDelta(sets, sources, notes)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshot, err := store.ApplyFlowDelta(context.Background(), reviewID, expectedVersion, delta, user)
	if err != nil {
		var conflict *ledger.VersionConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintf(os.Stderr, "flow head moved to version %d since you read version %d; re-read and retry\n",
				conflict.Current, conflict.Expected)
		}
		return err
	}

	fmt.Printf("Flow advanced to version %d\n", snapshot.Version)
	printSnapshot(snapshot)
	return nil
}

var flowShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a flow snapshot (head by default)",
	RunE:  runFlowShow,
}

func runFlowShow(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}
	version, _ := cmd.Flags().GetInt("version")

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshot, err := store.GetFlowSnapshot(context.Background(), reviewID, version)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(snapshot)
	}
	if snapshot.Version == 0 {
		fmt.Println("No flow snapshots yet (head is the empty version 0).")
		return nil
	}
	printSnapshot(snapshot)
	return nil
}

var flowHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List the snapshot chain in version order",
	RunE:  runFlowHistory,
}

func runFlowHistory(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	history, err := store.FlowHistory(context.Background(), reviewID)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(history)
	}
	if len(history) == 0 {
		fmt.Println("No flow snapshots yet.")
		return nil
	}
	for _, s := range history {
		fmt.Printf("v%-3d  %s  screened=%d excluded=%d full-text=%d included=%d\n",
			s.Version, s.Timestamp.Format("2006-01-02 15:04:05"),
			s.RecordsScreened.Count, s.RecordsExcluded.Count,
			s.FullTextAssessed.Count, s.StudiesIncluded.Count)
	}
	return nil
}

// buildDelta assembles a FlowDelta from the repeatable flag forms
// section=count, section:source=count, and section=note-text.
func buildDelta(sets, sources, notes []string) (types.FlowDelta, error) {
	delta := types.FlowDelta{}

	section := func(name string) (types.PrismaSectionName, error) {
		n := types.PrismaSectionName(strings.TrimSpace(name))
		if !types.ValidSectionName(n) {
			return "", fmt.Errorf("unknown section %q", name)
		}
		return n, nil
	}

	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: expected section=count", s)
		}
		name, err := section(key)
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("--set %q: %q is not an integer", s, value)
		}
		sd := delta[name]
		sd.Count += count
		delta[name] = sd
	}

	for _, s := range sources {
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("--source %q: expected section:source=count", s)
		}
		sectionPart, sourceName, ok := strings.Cut(key, ":")
		if !ok || strings.TrimSpace(sourceName) == "" {
			return nil, fmt.Errorf("--source %q: expected section:source=count", s)
		}
		name, err := section(sectionPart)
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("--source %q: %q is not an integer", s, value)
		}
		sd := delta[name]
		if sd.Details == nil {
			sd.Details = make(map[string]int)
		}
		sd.Details[strings.TrimSpace(sourceName)] += count
		delta[name] = sd
	}

	for _, s := range notes {
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("--note %q: expected section=text", s)
		}
		name, err := section(key)
		if err != nil {
			return nil, err
		}
		sd := delta[name]
		sd.Notes = value
		delta[name] = sd
	}

	return delta, nil
}

func printSnapshot(s types.PrismaState) {
	fmt.Printf("%-22s  %7s  %s\n", "Section", "Count", "Breakdown")
	fmt.Println(strings.Repeat("-", 60))
	for _, name := range types.SectionNames() {
		sec := s.Section(name)
		breakdown := ""
		if len(sec.Details) > 0 {
			parts := make([]string, 0, len(sec.Details))
			for _, source := range sortedKeys(sec.Details) {
				parts = append(parts, fmt.Sprintf("%s=%d", source, sec.Details[source]))
			}
			breakdown = strings.Join(parts, " ")
		}
		fmt.Printf("%-22s  %7d  %s\n", name, sec.Count, breakdown)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	flowApplyCmd.Flags().String("review", "", "review ID")
	flowApplyCmd.Flags().Int("expected-version", 0, "flow head version the delta was computed against")
	flowApplyCmd.Flags().String("user", "", "acting user recorded in the audit log")
	flowApplyCmd.Flags().StringArray("set", nil, "section count delta: section=count (repeatable)")
	flowApplyCmd.Flags().StringArray("source", nil, "breakdown delta: section:source=count (repeatable)")
	flowApplyCmd.Flags().StringArray("note", nil, "section note: section=text (repeatable)")

	flowShowCmd.Flags().String("review", "", "review ID")
	flowShowCmd.Flags().Int("version", 0, "snapshot version (0 = head)")
	flowShowCmd.Flags().Bool("json", false, "output as JSON")

	flowHistoryCmd.Flags().String("review", "", "review ID")
	flowHistoryCmd.Flags().Bool("json", false, "output as JSON")

	flowCmd.AddCommand(flowApplyCmd)
	flowCmd.AddCommand(flowShowCmd)
	flowCmd.AddCommand(flowHistoryCmd)

	rootCmd.AddCommand(flowCmd)
}
