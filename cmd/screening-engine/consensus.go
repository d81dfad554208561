// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/reconcile"
	"github.com/pdiddy/screening-engine/pkg/types"
)

var consensusCmd = &cobra.Command{
	Use:   "consensus",
	Short: "Reconcile a document's decisions into a consensus verdict",
	Long: `Consensus runs the reconciliation policy on demand: unanimous decisions
carry, a confident exclusion overrides weaker include votes, and
unresolved disagreement escalates the document to uncertain for human
adjudication. A document with too few decisions is pending, which is an
answer, not an error.`,
}

var consensusGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the consensus verdict for a document",
	RunE:  runConsensusGet,
}

func runConsensusGet(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()
	rq, err := store.GetReview(ctx, reviewID)
	if err != nil {
		return err
	}

	engine := reconcile.New(reconcileConfig(cmd))
	verdict, err := engine.Evaluate(ctx, store, reviewID, docID, rq.CriteriaVersion)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(verdict)
	}
	printVerdict(docID, verdict)
	return nil
}

func init() {
	consensusGetCmd.Flags().String("review", "", "review ID")
	consensusGetCmd.Flags().String("doc", "", "document identifier")
	consensusGetCmd.Flags().Int("k", 0, "decisions required for a final verdict (0 = config default)")
	consensusGetCmd.Flags().Float64("tau", 0, "high-confidence threshold (0 = config default)")
	consensusGetCmd.Flags().Bool("json", false, "output verdict as JSON")

	consensusCmd.AddCommand(consensusGetCmd)

	rootCmd.AddCommand(consensusCmd)
}
