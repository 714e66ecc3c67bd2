package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/replygate/internal/config"
	"github.com/nextlevelbuilder/replygate/internal/engine"
	"github.com/nextlevelbuilder/replygate/internal/store"
	"github.com/nextlevelbuilder/replygate/internal/store/pg"
	"github.com/nextlevelbuilder/replygate/internal/store/sqlite"
)

func openConfiguredStores() (*store.Stores, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.IsManagedMode() {
		return pg.NewStores(cfg.Database.PostgresDSN)
	}
	return sqlite.NewStores(cfg.Database.SQLitePath)
}

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Pattern set management",
	}
	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsSeedCmd())
	cmd.AddCommand(patternsValidateCmd())
	return cmd
}

func patternsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openConfiguredStores()
			if err != nil {
				return err
			}
			defer stores.Close()

			rows, err := stores.Patterns.ListPatterns(context.Background())
			if err != nil {
				return err
			}
			for _, p := range rows {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Printf("%-20s %-10s prio=%d min_conf=%.2f %s\n",
					p.PatternID, p.MessageType, p.Priority, p.MinConfidence, state)
			}
			fmt.Printf("%d pattern(s)\n", len(rows))
			return nil
		},
	}
}

func patternsSeedCmd() *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the built-in default pattern set to persistence",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openConfiguredStores()
			if err != nil {
				return err
			}
			defer stores.Close()

			ctx := context.Background()
			count := 0
			for _, p := range engine.DefaultPatterns() {
				if !overwrite {
					if _, err := stores.Patterns.GetPattern(ctx, p.PatternID); err == nil {
						continue
					}
				}
				if err := stores.Patterns.UpsertPattern(ctx, engine.PatternToData(p)); err != nil {
					return err
				}
				count++
			}
			fmt.Printf("seeded %d pattern(s)\n", count)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing patterns with the same id")
	return cmd
}

func patternsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <seed-file>",
		Short: "Validate a JSON5 pattern seed file without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var patterns []engine.Pattern
			if err := json5.Unmarshal(data, &patterns); err != nil {
				return fmt.Errorf("parse: %w", err)
			}

			bad := 0
			for i := range patterns {
				if err := engine.Validate(&patterns[i]); err != nil {
					fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", patterns[i].PatternID, err)
					bad++
				}
			}
			fmt.Printf("%d pattern(s), %d invalid\n", len(patterns), bad)
			if bad > 0 {
				return fmt.Errorf("%d invalid pattern(s)", bad)
			}
			return nil
		},
	}
}
