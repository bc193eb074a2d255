package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/careers-finder/internal/output"
	"github.com/jonathan/careers-finder/internal/trace"
)

var (
	positionsCompany string
	positionsURL     string
	positionsSave    bool
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Extract the open positions listed on a careers page",
	Long: "Fetches the careers page, strips it to its job listings and asks the LLM for the open positions. " +
		"Without --url the page is resolved first.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := trace.WithCompany(cmd.Context(), positionsCompany)

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		url := positionsURL
		if url == "" {
			r, err := newResolver(ctx, cfg, store)
			if err != nil {
				return err
			}
			res, err := r.Resolve(ctx, positionsCompany)
			if err != nil {
				return err
			}
			if !res.Found() {
				return fmt.Errorf("no careers page found for %s", positionsCompany)
			}
			url = res.URL
		}

		extractor, client, err := newExtractor(ctx, cfg, store)
		if err != nil {
			return err
		}
		defer client.Close()

		list, err := extractor.Extract(ctx, positionsCompany, url)
		if err != nil {
			return err
		}

		if positionsSave {
			path, written, err := output.NewWriter(cfg.OutputDir, true).Write(positionsCompany, list)
			if err != nil {
				return err
			}
			if written {
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d positions to %s\n", len(list), path)
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	},
}

func init() {
	positionsCmd.Flags().StringVar(&positionsCompany, "company", "", "Company name")
	positionsCmd.Flags().StringVar(&positionsURL, "url", "", "Careers page URL (resolved when omitted)")
	positionsCmd.Flags().BoolVar(&positionsSave, "save", false, "Also write the positions CSV")
	if err := positionsCmd.MarkFlagRequired("company"); err != nil {
		panic(fmt.Sprintf("failed to mark company flag as required: %v", err))
	}
	rootCmd.AddCommand(positionsCmd)
}
