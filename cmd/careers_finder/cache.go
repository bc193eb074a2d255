package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/careers-finder/internal/search"
)

var cacheRawKey bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or edit the search cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <company>",
	Short: "Show the cached search result for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		key := cacheKeyFor(args[0])
		entry, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		switch {
		case !ok:
			fmt.Fprintf(w, "%s\tnot cached\n", key)
		case entry.NotFound:
			fmt.Fprintf(w, "%s\tno results\n", key)
		default:
			fmt.Fprintf(w, "%s\t%s\n", key, entry.Value)
		}
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <company>",
	Short: "Forget the cached search result for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		key := cacheKeyFor(args[0])
		if err := store.Delete(ctx, key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().BoolVar(&cacheRawKey, "key", false, "Treat the argument as a raw cache key")
	cacheCmd.AddCommand(cacheGetCmd, cacheDeleteCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cacheKeyFor(arg string) string {
	if cacheRawKey {
		return arg
	}
	return search.CacheKey(search.BuildQuery(cfg.QueryTemplate, arg))
}
