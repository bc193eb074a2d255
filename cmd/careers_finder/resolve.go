package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/careers-finder/internal/batch"
	"github.com/jonathan/careers-finder/internal/trace"
)

var resolveJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <company> [company...]",
	Short: "Find and vet the careers page of one or more companies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := newResolver(ctx, cfg, store)
		if err != nil {
			return err
		}
		return resolveAll(ctx, r, args, resolveJSON, cmd.OutOrStdout())
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print one JSON object per company")
	rootCmd.AddCommand(resolveCmd)
}

// resolveAll prints one line per company. Search failures are printed and
// do not stop the remaining companies.
func resolveAll(ctx context.Context, r batch.Resolver, names []string, asJSON bool, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		companyCtx := trace.WithCompany(ctx, name)
		res, err := r.Resolve(companyCtx, name)
		if err != nil {
			trace.Logger(companyCtx).Warn("resolution failed", "error", err)
		}

		if asJSON {
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t%v\n", name, res.Status, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", name, res.Status, res.URL, res.Score, res.Method)
	}
	return nil
}
