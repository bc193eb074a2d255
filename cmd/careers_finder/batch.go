package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/careers-finder/internal/batch"
	"github.com/jonathan/careers-finder/internal/config"
	"github.com/jonathan/careers-finder/internal/events"
	"github.com/jonathan/careers-finder/internal/output"
	"github.com/jonathan/careers-finder/internal/trace"
)

var (
	batchCompanies   string
	batchColumn      string
	batchLimit       int
	batchConcurrency int
	batchPositions   bool
	batchOverride    bool
	batchOutputDir   string
	batchRecord      bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve every company in a CSV file",
	Long: "Reads company names from a CSV column, resolves each careers page concurrently and, " +
		"with --positions, writes the open positions of every accepted page to <output-dir>/positions/<company>.csv.",
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchCompanies, "companies", "f", "", "CSV file of companies")
	batchCmd.Flags().StringVar(&batchColumn, "column", "", "Column holding company names (default \"Organisation Name\")")
	batchCmd.Flags().IntVarP(&batchLimit, "limit", "n", 0, "Process at most this many companies (0 for all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "Companies processed at once (default 20)")
	batchCmd.Flags().BoolVar(&batchPositions, "positions", false, "Extract open positions from accepted pages")
	batchCmd.Flags().BoolVar(&batchOverride, "override", false, "Re-process companies that already have a positions file")
	batchCmd.Flags().StringVarP(&batchOutputDir, "output-dir", "o", "", "Directory for positions files")
	batchCmd.Flags().BoolVar(&batchRecord, "record", false, "Record every resolution in the database")
	rootCmd.AddCommand(batchCmd)
}

// applyBatchFlags overrides c with the flags the user set.
func applyBatchFlags(cmd *cobra.Command, c config.Config) config.Config {
	flags := cmd.Flags()
	if flags.Changed("companies") {
		c.CompaniesFile = batchCompanies
	}
	if flags.Changed("column") {
		c.NameColumn = batchColumn
	}
	if flags.Changed("limit") {
		c.Limit = batchLimit
	}
	if flags.Changed("concurrency") {
		c.BatchSize = batchConcurrency
	}
	if flags.Changed("positions") {
		c.ExtractPositions = batchPositions
	}
	if flags.Changed("override") {
		c.Override = batchOverride
	}
	if flags.Changed("output-dir") {
		c.OutputDir = batchOutputDir
	}
	if flags.Changed("record") {
		c.RecordResolutions = batchRecord
	}
	return c
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := applyBatchFlags(cmd, cfg)
	if c.CompaniesFile == "" {
		return fmt.Errorf("--companies is required")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	companies, err := output.ReadCompanies(c.CompaniesFile, c.NameColumn, c.Limit)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := newResolver(ctx, c, store)
	if err != nil {
		return err
	}

	opts := batch.Options{
		Concurrency: c.BatchSize,
		Writer:      output.NewWriter(c.OutputDir, c.Override),
	}

	if c.ExtractPositions {
		extractor, client, err := newExtractor(ctx, c, store)
		if err != nil {
			return err
		}
		defer client.Close()
		opts.Extractor = extractor
		opts.SkipExisting = !c.Override
	}

	if c.RecordResolutions {
		database, err := openDatabase(ctx, c)
		if err != nil {
			return err
		}
		defer database.Close()
		opts.Recorder = database
	}

	if c.KafkaBroker != "" {
		producer := events.NewProducer(c.KafkaBroker, c.KafkaTopic)
		defer producer.Close()
		opts.Publisher = producer
	}

	logger := trace.Logger(ctx)
	opts.OnProgress = func(e batch.ProgressEvent) {
		logger.Info("company finished",
			"company", e.Company,
			"status", e.Status,
			"skipped", e.Skipped,
			"done", e.Done,
			"total", e.Total)
	}

	report, err := batch.NewRunner(r, opts).Run(ctx, companies)
	if report != nil {
		printSummary(cmd.OutOrStdout(), report)
	}
	return err
}

func printSummary(w io.Writer, report *batch.Report) {
	s := report.Summary()
	fmt.Fprintf(w, "Run %s finished in %s\n", report.RunID, report.Finished.Sub(report.Started).Round(time.Millisecond))
	fmt.Fprintf(w, "  Found:        %d\n", s.Found)
	fmt.Fprintf(w, "  Not relevant: %d\n", s.NotRelevant)
	fmt.Fprintf(w, "  Failed:       %d\n", s.Failed)
	fmt.Fprintf(w, "  Skipped:      %d\n", s.Skipped)
	fmt.Fprintf(w, "  Positions:    %d\n", s.Positions)
}
