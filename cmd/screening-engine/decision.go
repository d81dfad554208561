// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/reconcile"
	"github.com/pdiddy/screening-engine/pkg/types"
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Record and list screening decisions",
	Long: `Decision appends screening judgments to the decision ledger. Decisions
are immutable: a correction is a new decision, and the full judgment
history per document is preserved. Submitting a decision re-runs
reconciliation for the document and prints the resulting verdict.`,
}

var decisionSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record a screening decision and print the updated verdict",
	RunE:  runDecisionSubmit,
}

func runDecisionSubmit(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}
	rawDoc, _ := cmd.Flags().GetString("doc")
	result, _ := cmd.Flags().GetString("result")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	reasons, _ := cmd.Flags().GetStringArray("reason")
	model, _ := cmd.Flags().GetString("model")

	docID, err := types.ParseDocID(rawDoc)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	decision := types.ScreeningDecision{
		SRID:       reviewID,
		DocID:      docID,
		Result:     types.ScreeningResult(result),
		Confidence: confidence,
		Reasons:    reasons,
		ModelID:    model,
	}

	id, err := store.RecordDecision(ctx, decision)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded decision %s\n", id)

	// Incremental re-evaluation: each new decision refreshes the
	// document's consensus verdict.
	rq, err := store.GetReview(ctx, reviewID)
	if err != nil {
		return err
	}
	engine := reconcile.New(reconcileConfig(cmd))
	verdict, err := engine.Evaluate(ctx, store, reviewID, docID, rq.CriteriaVersion)
	if err != nil {
		return err
	}
	printVerdict(docID, verdict)
	return nil
}

var decisionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a document's decisions in creation order",
	RunE:  runDecisionList,
}

func runDecisionList(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}
	rawDoc, _ := cmd.Flags().GetString("doc")
	docID, err := types.ParseDocID(rawDoc)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	decisions, err := store.ListDecisions(context.Background(), reviewID, docID)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(decisions)
	}
	if len(decisions) == 0 {
		fmt.Println("No decisions recorded.")
		return nil
	}
	for _, d := range decisions {
		reviewer := d.ModelID
		if d.IsHuman() {
			reviewer = "human"
		}
		fmt.Printf("%s  %-9s  %.2f  %-24s  %s\n",
			d.CreatedAt.Format("2006-01-02 15:04:05"), d.Result, d.Confidence,
			reviewer, d.Reasons[0])
	}
	return nil
}

func printVerdict(docID types.DocID, verdict reconcile.Verdict) {
	if verdict.Pending() {
		fmt.Printf("Verdict for %s: pending (%d decision(s) so far)\n", docID, len(verdict.DecisionIDs))
		return
	}
	qualifier := ""
	if verdict.Provisional {
		qualifier = ", provisional"
	}
	fmt.Printf("Verdict for %s: %s (%s%s, %d decision(s), criteria v%d)\n",
		docID, verdict.Result, verdict.Reason, qualifier,
		len(verdict.DecisionIDs), verdict.CriteriaVersion)
}

func init() {
	decisionSubmitCmd.Flags().String("review", "", "review ID")
	decisionSubmitCmd.Flags().String("doc", "", "document identifier (PMID, DOI, UUID, or accession string)")
	decisionSubmitCmd.Flags().String("result", "", "screening result: include, exclude, or uncertain")
	decisionSubmitCmd.Flags().Float64("confidence", 0, "reviewer confidence in [0.0, 1.0]")
	decisionSubmitCmd.Flags().StringArray("reason", nil, "justification (repeatable)")
	decisionSubmitCmd.Flags().String("model", "", "deciding model ID (omit for a human reviewer)")
	decisionSubmitCmd.Flags().Int("k", 0, "decisions required for a final verdict (0 = config default)")
	decisionSubmitCmd.Flags().Float64("tau", 0, "high-confidence threshold (0 = config default)")

	decisionListCmd.Flags().String("review", "", "review ID")
	decisionListCmd.Flags().String("doc", "", "document identifier")
	decisionListCmd.Flags().Bool("json", false, "output as JSON")

	decisionCmd.AddCommand(decisionSubmitCmd)
	decisionCmd.AddCommand(decisionListCmd)

	rootCmd.AddCommand(decisionCmd)
}
