package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/careers-finder/internal/classify"
	"github.com/jonathan/careers-finder/internal/config"
	"github.com/jonathan/careers-finder/internal/llm"
	"github.com/jonathan/careers-finder/internal/output"
)

var (
	classifyCompanies  string
	classifyColumn     string
	classifyLimit      int
	classifyOut        string
	classifyPerPrompt  int
	classifyPerRound   int
	hiringCategoryFile string
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Categorize companies by name with the LLM",
	Long: "Asks the LLM for the business category of every company in the CSV file, judged by name only. " +
		"Results are appended to --out after each round; companies already in it are skipped.",
	RunE: runCategorize,
}

var hiringCmd = &cobra.Command{
	Use:   "hiring-probability",
	Short: "Estimate how likely each categorized company is to hire software engineers",
	Long: "Reads the categorize results and asks the LLM, for each company and its category, " +
		"the probability (0 to 100) that it employs software engineers.",
	RunE: runHiringProbability,
}

func init() {
	for _, cmd := range []*cobra.Command{categorizeCmd, hiringCmd} {
		cmd.Flags().StringVarP(&classifyOut, "out", "o", "", "Results JSON file")
		cmd.Flags().IntVarP(&classifyLimit, "limit", "n", 0, "Classify at most this many companies (0 for all)")
		cmd.Flags().IntVar(&classifyPerPrompt, "names-per-prompt", 0, "Companies per LLM prompt (default 100)")
		cmd.Flags().IntVar(&classifyPerRound, "prompts-per-round", 0, "Prompts sent at once (default 5)")
		rootCmd.AddCommand(cmd)
	}
	categorizeCmd.Flags().StringVarP(&classifyCompanies, "companies", "f", "", "CSV file of companies")
	categorizeCmd.Flags().StringVar(&classifyColumn, "column", "", "Column holding company names (default \"Organisation Name\")")
	hiringCmd.Flags().StringVar(&hiringCategoryFile, "categories", "", "Categorize results to read (default <output_dir>/categories/categorize_by_name_results.json)")
}

func categoriesPath(c config.Config) string {
	return filepath.Join(c.OutputDir, "categories", "categorize_by_name_results.json")
}

func hiringPath(c config.Config) string {
	return filepath.Join(c.OutputDir, "hiring_probability", "hiring_probability.json")
}

// applyClassifyFlags overrides c with the flags the user set.
func applyClassifyFlags(cmd *cobra.Command, c config.Config) config.Config {
	flags := cmd.Flags()
	if flags.Changed("companies") {
		c.CompaniesFile = classifyCompanies
	}
	if flags.Changed("column") {
		c.NameColumn = classifyColumn
	}
	if flags.Changed("limit") {
		c.Limit = classifyLimit
	}
	return c
}

func runCategorize(cmd *cobra.Command, _ []string) error {
	c := applyClassifyFlags(cmd, cfg)
	if c.CompaniesFile == "" {
		return fmt.Errorf("--companies is required")
	}
	out := classifyOut
	if out == "" {
		out = categoriesPath(c)
	}

	companies, err := output.ReadCompanies(c.CompaniesFile, c.NameColumn, c.Limit)
	if err != nil {
		return err
	}
	done, err := classify.ReadResults(out)
	if err != nil {
		return err
	}
	pending := classify.Pending(companies, done)
	if len(pending) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "All %d companies are already categorized in %s\n", len(companies), out)
		return nil
	}
	return runClassifier(cmd, c, classify.Categorize, pending, out)
}

func runHiringProbability(cmd *cobra.Command, _ []string) error {
	c := applyClassifyFlags(cmd, cfg)
	in := hiringCategoryFile
	if in == "" {
		in = categoriesPath(c)
	}
	out := classifyOut
	if out == "" {
		out = hiringPath(c)
	}

	categories, err := classify.ReadResults(in)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return fmt.Errorf("no categorized companies in %s, run categorize first", in)
	}
	done, err := classify.ReadResults(out)
	if err != nil {
		return err
	}
	pending := classify.HiringInputs(categories, done)
	if c.Limit > 0 && len(pending) > c.Limit {
		pending = pending[:c.Limit]
	}
	if len(pending) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "All %d companies already have a hiring probability in %s\n", len(categories), out)
		return nil
	}
	return runClassifier(cmd, c, classify.HiringProbability, pending, out)
}

func runClassifier(cmd *cobra.Command, c config.Config, task classify.Task, names []string, out string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := newLLMClient(ctx, c, llm.TierStandard)
	if err != nil {
		return err
	}
	defer client.Close()

	classifier := classify.New(client, store, task, classify.Options{
		NamesPerPrompt:  classifyPerPrompt,
		PromptsPerRound: classifyPerRound,
		Timeout:         time.Duration(c.LLMTimeout),
	})
	return classifyInto(ctx, cmd.OutOrStdout(), classifier, names, out)
}

// classifyInto runs classifier over names, appending each round to out.
func classifyInto(ctx context.Context, w io.Writer, classifier *classify.Classifier, names []string, out string) error {
	got, err := classifier.Run(ctx, names, func(round []classify.Deduction) error {
		return classify.AppendResults(out, round, time.Now())
	})
	fmt.Fprintf(w, "Classified %d of %d companies into %s\n", len(got), len(names), out)
	return err
}
