package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/careers-finder/internal/db"
)

var (
	historyRunID   string
	historyCompany string
	historyStatus  string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded resolutions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("history requires DATABASE_URL")
		}

		filters := db.ResolutionFilters{
			Company: historyCompany,
			Status:  historyStatus,
			Limit:   historyLimit,
		}
		if historyRunID != "" {
			id, err := uuid.Parse(historyRunID)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", historyRunID, err)
			}
			filters.RunID = id
		}

		database, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		rows, err := database.ListResolutions(ctx, filters)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tCOMPANY\tSTATUS\tURL\tSCORE\tMETHOD")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"), r.Company, r.Status, r.URL, r.Similarity, r.Method)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyRunID, "run-id", "", "Only show one batch run")
	historyCmd.Flags().StringVar(&historyCompany, "company", "", "Only show one company")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Only show found, not_relevant or failed")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", db.DefaultResolutionsLimit, "Maximum rows")
	rootCmd.AddCommand(historyCmd)
}
