package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/proforma/internal/config"
	"github.com/cleared-dev/proforma/internal/gitops"
)

func newInitCommand() *cobra.Command {
	var name string
	var cik string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new proforma workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, name, cik)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "filer name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&cik, "cik", "", "filer CIK")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name, cik string) error {
	for _, d := range []string{"filings", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(name, cik)
	cfg.Metrics.Textfile = filepath.Join("logs", "proforma.prom")
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Metrics are regenerated on every run.
	gitignore := "*.prom\n.proforma-cache/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "filings", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if err := gitops.Init(dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}

	hash, err := gitops.CommitAll(dir, "init: Initialize "+name, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized proforma workspace at %s (%s)\n", dir, hash)
	return nil
}
