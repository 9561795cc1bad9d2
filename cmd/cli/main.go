package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"epistat/adapters/excel"
	"epistat/adapters/stats/casecontrol"
	"epistat/app"
	"epistat/domain/dataset"
	"epistat/internal/config"
	"epistat/internal/profiling"
)

// studyFlags are shared by every command that analyses a dataset
type studyFlags struct {
	studyFile string
	outcome   string
	exposures []string
	noYates   bool
	workers   int
	markdown  bool
}

func main() {
	_ = godotenv.Load()

	flags := &studyFlags{}
	rootCmd := &cobra.Command{
		Use:   "epistat-cli",
		Short: "Case-control association analysis from the terminal",
	}
	rootCmd.PersistentFlags().StringVar(&flags.studyFile, "study", os.Getenv("STUDY_FILE"), "YAML study definition")
	rootCmd.PersistentFlags().StringVar(&flags.outcome, "outcome", "", "Outcome column (overrides the study)")
	rootCmd.PersistentFlags().StringSliceVar(&flags.exposures, "exposures", nil, "Exposure columns (overrides the study)")
	rootCmd.PersistentFlags().BoolVar(&flags.noYates, "no-yates", false, "Disable Yates' continuity correction")
	rootCmd.PersistentFlags().IntVar(&flags.workers, "workers", 0, "Concurrent exposure analyses")
	rootCmd.PersistentFlags().BoolVar(&flags.markdown, "markdown", false, "Render tables as Markdown")

	rootCmd.AddCommand(
		newAnalyzeCmd(flags),
		newReportCmd(flags),
		newProfileCmd(flags),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd(flags *studyFlags) *cobra.Command {
	var exposure string

	cmd := &cobra.Command{
		Use:   "analyze [data-file]",
		Short: "Contingency table, chi-square test and odds ratio for one exposure",
		Long: `Analyse one exposure column against the outcome column.

Example: epistat-cli analyze outbreak.csv --exposure foodA`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, svc, err := setup(flags, args[0])
			if err != nil {
				return err
			}
			if exposure == "" {
				exposure = svc.Config().ExposureColumns[0]
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), svc, ds, exposure, flags.markdown)
		},
	}

	cmd.Flags().StringVar(&exposure, "exposure", "", "Exposure column (default: first configured exposure)")
	return cmd
}

func newReportCmd(flags *studyFlags) *cobra.Command {
	var xlsxPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report [data-file]",
		Short: "Overall result: one association record per exposure",
		Long: `Analyse every configured exposure and print the overall result.

Example: epistat-cli report outbreak.csv --exposures foodA,foodB --xlsx report.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, svc, err := setup(flags, args[0])
			if err != nil {
				return err
			}
			return runReport(cmd.Context(), cmd.OutOrStdout(), svc, ds, reportOutput{
				xlsxPath: xlsxPath,
				json:     asJSON,
				markdown: flags.markdown,
			})
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the report to this workbook")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newProfileCmd(flags *studyFlags) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "profile [data-file]",
		Short: "Descriptive statistics for every column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := excel.NewDataReader(args[0]).ReadDataset()
			if err != nil {
				return err
			}
			report, err := profiling.NewDataProfiler(profiling.DefaultConfig()).Profile(ds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if full {
				_, err = io.WriteString(out, report.Markdown())
				return err
			}
			_, err = io.WriteString(out, renderProfile(report, flags.markdown))
			return err
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Print the complete Markdown report")
	return cmd
}

// setup reads the dataset and builds a report service from the study settings
// with any command-line overrides applied.
func setup(flags *studyFlags, path string) (*dataset.Dataset, *app.ReportService, error) {
	study, err := config.LoadStudy(flags.studyFile)
	if err != nil {
		return nil, nil, err
	}
	if flags.outcome != "" {
		study.OutcomeColumn = flags.outcome
	}
	if len(flags.exposures) > 0 {
		study.ExposureColumns = flags.exposures
	}
	if flags.workers > 0 {
		study.MaxWorkers = flags.workers
	}
	if flags.noYates {
		off := false
		study.YatesCorrection = &off
	}
	if err := config.ValidateStudy(study); err != nil {
		return nil, nil, err
	}

	ds, err := excel.NewDataReader(path).ReadDataset()
	if err != nil {
		return nil, nil, err
	}

	analyzer := casecontrol.NewAnalyzer(casecontrol.Options{YatesCorrection: study.Yates()})
	svc := app.NewReportService(analyzer, nil, app.ReportConfig{
		OutcomeColumn:   study.OutcomeColumn,
		ExposureColumns: study.ExposureColumns,
		MaxWorkers:      study.MaxWorkers,
	})
	return ds, svc, nil
}

func runAnalyze(ctx context.Context, out io.Writer, svc *app.ReportService, ds *dataset.Dataset, exposure string, markdown bool) error {
	result, err := svc.AnalyzeExposure(ctx, ds, exposure)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, renderAnalysis(result, markdown))
	return err
}

type reportOutput struct {
	xlsxPath string
	json     bool
	markdown bool
}

func runReport(ctx context.Context, out io.Writer, svc *app.ReportService, ds *dataset.Dataset, opts reportOutput) error {
	report, err := svc.BuildReport(ctx, ds, nil)
	if err != nil {
		return err
	}

	if opts.xlsxPath != "" {
		f, err := os.Create(opts.xlsxPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.xlsxPath, err)
		}
		if err := excel.WriteReport(f, report); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", opts.xlsxPath)
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err = io.WriteString(out, renderReport(report, opts.markdown))
	return err
}
