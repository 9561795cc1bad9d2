package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"epistat/adapters/excel"
	"epistat/adapters/stats/casecontrol"
	"epistat/domain/dataset"
	"epistat/internal/container"
	"epistat/internal/outbreak"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "epistat-dev",
		Short: "epistat development tools",
	}

	rootCmd.AddCommand(
		newSeedCmd(),
		newSmokeTestCmd(),
		newDeterminismTestCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	var rows int
	var seed int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store a synthetic outbreak dataset in DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := os.Getenv("DATABASE_URL")
			if url == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			db, err := container.OpenDatabase(cmd.Context(), url)
			if err != nil {
				return err
			}
			defer db.Close()

			ds, err := generate(rows, seed)
			if err != nil {
				return err
			}
			datasets, _, _ := container.Repositories(db)
			if err := datasets.Create(cmd.Context(), ds); err != nil {
				return err
			}
			fmt.Printf("Seeded dataset %s (%d rows)\n", ds.ID, ds.Len())
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 200, "Number of respondents")
	cmd.Flags().Int64Var(&seed, "seed", 42, "RNG seed")
	return cmd
}

func newSmokeTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "smoke",
		Short: "Generate an outbreak and check the culprit food is flagged",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmoke(cmd.Context())
		},
	}
}

func newDeterminismTestCmd() *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "determinism [data-file]",
		Short: "Analyse every column repeatedly and compare the results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ds *dataset.Dataset
			var err error
			if len(args) == 1 {
				ds, err = excel.NewDataReader(args[0]).ReadDataset()
			} else {
				ds, err = generate(500, 7)
			}
			if err != nil {
				return err
			}
			return runDeterminism(ds, "case_or_control", runs)
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 20, "Repetitions per exposure")
	return cmd
}

// generate builds a synthetic outbreak as a dataset
func generate(rows int, seed int64) (*dataset.Dataset, error) {
	cfg := outbreak.DefaultConfig()
	cfg.Rows = rows
	cfg.Seed = seed
	gen, err := outbreak.Generate(cfg)
	if err != nil {
		return nil, err
	}
	records, err := dataset.FromMatrix(gen.Headers, gen.Rows)
	if err != nil {
		return nil, err
	}
	return dataset.New(fmt.Sprintf("outbreak-%d.csv", seed), dataset.SourceGenerated, gen.Headers, records), nil
}

func runSmoke(ctx context.Context) error {
	ds, err := generate(1000, 42)
	if err != nil {
		return err
	}
	analyzer := casecontrol.NewAnalyzer(casecontrol.DefaultOptions())

	res, err := analyzer.Analyze(ds, "case_or_control", "foodA")
	if err != nil {
		return err
	}
	if !res.Significant(0.05) || !res.OddsRatio.Defined || res.OddsRatio.Value >= 1 {
		return fmt.Errorf("smoke: culprit not detected: OR %s, p %s", res.OddsRatio, res.PValue)
	}
	fmt.Printf("✓ foodA flagged: OR %s, p %s\n", res.OddsRatio, res.PValue)

	res, err = analyzer.Analyze(ds, "case_or_control", "foodE")
	if err != nil {
		return err
	}
	fmt.Printf("  foodE (noise): OR %s, p %s\n", res.OddsRatio, res.PValue)
	return ctx.Err()
}

func runDeterminism(ds *dataset.Dataset, outcome string, runs int) error {
	analyzer := casecontrol.NewAnalyzer(casecontrol.DefaultOptions())

	for _, exposure := range ds.Headers {
		if exposure == outcome {
			continue
		}
		first, err := analyzer.Analyze(ds, outcome, exposure)
		if err != nil {
			return err
		}
		for i := 1; i < runs; i++ {
			again, err := analyzer.Analyze(ds, outcome, exposure)
			if err != nil {
				return err
			}
			if again.Table.Fingerprint() != first.Table.Fingerprint() ||
				again.ChiSquare != first.ChiSquare ||
				again.PValue != first.PValue ||
				again.OddsRatio != first.OddsRatio {
				return fmt.Errorf("determinism: %s differs on run %d", exposure, i+1)
			}
		}
		fmt.Printf("✓ %s: %d identical runs (table %s)\n", exposure, runs, first.Table.Fingerprint())
	}
	return nil
}
