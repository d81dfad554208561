// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/screening-engine/internal/ledger"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Propose and inspect review criteria versions",
	Long: `Criteria manages a review's inclusion/exclusion criteria as an immutable
version chain. Propose states the version you last read; if someone else
advanced it first the command fails with a version conflict and you
re-read and retry. Every accepted change lands in the audit log with both
snapshots verbatim.`,
}

var criteriaProposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose a new criteria version against the expected current one",
	RunE:  runCriteriaPropose,
}

func runCriteriaPropose(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}
	expectedVersion, _ := cmd.Flags().GetInt("expected-version")
	file, _ := cmd.Flags().GetString("file")
	reason, _ := cmd.Flags().GetString("reason")
	user, _ := cmd.Flags().GetString("user")

	if file == "" {
		return fmt.Errorf("--file is required")
	}
	criteria, err := loadCriteriaFile(file)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	newVersion, err := store.ProposeCriteria(context.Background(), reviewID, expectedVersion, criteria, reason, user)
	if err != nil {
		var conflict *ledger.VersionConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintf(os.Stderr, "criteria moved to version %d since you read version %d; re-read and retry\n",
				conflict.Current, conflict.Expected)
		}
		return err
	}

	fmt.Printf("Criteria advanced to version %d\n", newVersion)
	return nil
}

var criteriaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a criteria version (active by default)",
	RunE:  runCriteriaShow,
}

func runCriteriaShow(cmd *cobra.Command, args []string) error {
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

	criteria, resolved, err := store.GetCriteria(context.Background(), reviewID, version)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(struct {
			Version  int `json:"version"`
			Criteria any `json:"criteria"`
		}{resolved, criteria})
	}

	fmt.Printf("# criteria version %d\n", resolved)
	data, err := yaml.Marshal(criteria)
	if err != nil {
		return fmt.Errorf("marshaling criteria: %w", err)
	}
	os.Stdout.Write(data)
	return nil
}

var criteriaHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List every criteria version in chain order",
	RunE:  runCriteriaHistory,
}

func runCriteriaHistory(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	history, err := store.CriteriaHistory(context.Background(), reviewID)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(history)
	}
	for _, cv := range history {
		fmt.Printf("v%-3d  %s  %d inclusion, %d exclusion\n",
			cv.Version, cv.CreatedAt.Format("2006-01-02 15:04:05"),
			len(cv.Criteria.Inclusion), len(cv.Criteria.Exclusion))
	}
	return nil
}

func init() {
	criteriaProposeCmd.Flags().String("review", "", "review ID")
	criteriaProposeCmd.Flags().Int("expected-version", 0, "criteria version the proposal is based on")
	criteriaProposeCmd.Flags().String("file", "", "YAML file with the new criteria")
	criteriaProposeCmd.Flags().String("reason", "", "reason for the change, recorded in the audit log")
	criteriaProposeCmd.Flags().String("user", "", "acting user recorded in the audit log")

	criteriaShowCmd.Flags().String("review", "", "review ID")
	criteriaShowCmd.Flags().Int("version", 0, "criteria version (0 = active)")
	criteriaShowCmd.Flags().Bool("json", false, "output as JSON")

	criteriaHistoryCmd.Flags().String("review", "", "review ID")
	criteriaHistoryCmd.Flags().Bool("json", false, "output as JSON")

	criteriaCmd.AddCommand(criteriaProposeCmd)
	criteriaCmd.AddCommand(criteriaShowCmd)
	criteriaCmd.AddCommand(criteriaHistoryCmd)

	rootCmd.AddCommand(criteriaCmd)
}
