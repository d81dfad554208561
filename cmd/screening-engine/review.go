// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/screening-engine/pkg/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Create and inspect research questions",
	Long: `Review manages research questions. Creating one registers the question
text and its initial inclusion/exclusion criteria as criteria version 1;
every later criteria change is a new version proposed against the current
one.`,
}

var reviewCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a research question with its initial criteria",
	RunE:  runReviewCreate,
}

func runReviewCreate(cmd *cobra.Command, args []string) error {
	question, _ := cmd.Flags().GetString("question")
	criteriaFile, _ := cmd.Flags().GetString("criteria-file")
	user, _ := cmd.Flags().GetString("user")

	if criteriaFile == "" {
		return fmt.Errorf("--criteria-file is required")
	}
	criteria, err := loadCriteriaFile(criteriaFile)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	rq, err := store.CreateReview(context.Background(), question, criteria, user)
	if err != nil {
		return err
	}

	fmt.Printf("Created review %s (criteria version %d)\n", rq.ID, rq.CriteriaVersion)
	return nil
}

var reviewShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a research question",
	RunE:  runReviewShow,
}

func runReviewShow(cmd *cobra.Command, args []string) error {
	reviewID, err := reviewIDFlag(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	rq, err := store.GetReview(context.Background(), reviewID)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(rq)
	}
	fmt.Printf("Review:           %s\n", rq.ID)
	fmt.Printf("Question:         %s\n", rq.Question)
	fmt.Printf("Criteria version: %d\n", rq.CriteriaVersion)
	fmt.Printf("Created:          %s\n", rq.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List research questions",
	RunE:  runReviewList,
}

func runReviewList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	reviews, err := store.ListReviews(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(reviews)
	}
	if len(reviews) == 0 {
		fmt.Println("No reviews found.")
		return nil
	}
	for _, rq := range reviews {
		question := rq.Question
		if len(question) > 60 {
			question = question[:57] + "..."
		}
		fmt.Printf("%s  v%-3d  %s\n", rq.ID, rq.CriteriaVersion, question)
	}
	return nil
}

// loadCriteriaFile reads a ReviewCriteria YAML file.
func loadCriteriaFile(path string) (types.ReviewCriteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ReviewCriteria{}, fmt.Errorf("reading criteria file: %w", err)
	}
	var criteria types.ReviewCriteria
	if err := yaml.Unmarshal(data, &criteria); err != nil {
		return types.ReviewCriteria{}, fmt.Errorf("parsing criteria file %s: %w", path, err)
	}
	return criteria, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	reviewCreateCmd.Flags().String("question", "", "research question text")
	reviewCreateCmd.Flags().String("criteria-file", "", "YAML file with inclusion/exclusion criteria")
	reviewCreateCmd.Flags().String("user", "", "acting user recorded in the audit log")

	reviewShowCmd.Flags().String("review", "", "review ID")
	reviewShowCmd.Flags().Bool("json", false, "output as JSON")

	reviewListCmd.Flags().Bool("json", false, "output as JSON")

	reviewCmd.AddCommand(reviewCreateCmd)
	reviewCmd.AddCommand(reviewShowCmd)
	reviewCmd.AddCommand(reviewListCmd)

	rootCmd.AddCommand(reviewCmd)
}
