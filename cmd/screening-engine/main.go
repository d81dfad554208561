// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the screening-engine CLI.
// Implements: prd001-screening-model, prd002-decision-ledger,
//
//	prd003-reconciliation, prd004-prisma-flow, prd005-audit (CLI surface).
//
// See docs/ARCHITECTURE § Review Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/screening-engine/internal/ledger"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the screening-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "screening-engine",
	Short: "Decision reconciliation and PRISMA flow accounting for systematic reviews",
	Long: `screening-engine keeps the consistency-critical core of a systematic
review: an append-only ledger of screening decisions, versioned review
criteria, a validated PRISMA flow-accounting chain, and an audit log the
whole history can be replayed from.

Reviewers (human or model) submit decisions; the reconciliation engine
turns them into one consensus verdict per document. Criteria and flow
state advance only through optimistic-concurrency version checks, so
nothing is ever overwritten silently.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./screening-engine.yaml or ~/.config/screening-engine/config.yaml)")
	rootCmd.PersistentFlags().String("review-dir", "", "base directory for review data (contains index/, exports/)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("screening-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "screening-engine"))
		}
	}

	viper.SetEnvPrefix("SCREENING_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// openStore builds the ledger store from flags and config, flag winning.
func openStore(cmd *cobra.Command) (*ledger.Store, error) {
	dir, _ := cmd.Flags().GetString("review-dir")
	if dir == "" {
		dir = viper.GetString("store.review_dir")
	}
	if dir == "" {
		dir = "review"
	}
	cfg := types.StoreConfig{
		ReviewDir:   dir,
		BusyTimeout: viper.GetDuration("store.busy_timeout"),
	}
	return ledger.NewStore(cfg)
}

// reconcileConfig builds the consensus thresholds from config, with the
// command's --k/--tau flags overriding when set.
func reconcileConfig(cmd *cobra.Command) types.ReconcileConfig {
	cfg := types.ReconcileConfig{
		MinDecisions:        viper.GetInt("reconcile.min_decisions"),
		ConfidenceThreshold: viper.GetFloat64("reconcile.confidence_threshold"),
	}
	if cmd.Flags().Lookup("k") != nil {
		if k, _ := cmd.Flags().GetInt("k"); k > 0 {
			cfg.MinDecisions = k
		}
	}
	if cmd.Flags().Lookup("tau") != nil {
		if tau, _ := cmd.Flags().GetFloat64("tau"); tau > 0 {
			cfg.ConfidenceThreshold = tau
		}
	}
	return cfg.WithDefaults()
}

// reviewIDFlag parses the required --review flag.
func reviewIDFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("review")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--review is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--review %q is not a UUID: %w", raw, err)
	}
	return id, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
