package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/tournament-scraper/internal/calendar"
)

func newScrapeCmd() *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape a single month and write its snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if year == 0 || month == 0 {
				now := calendar.FromTime(time.Now())
				if year == 0 {
					year = now.Year
				}
				if month == 0 {
					month = now.Month
				}
			}
			if month < 1 || month > 12 {
				return fmt.Errorf("--month must be between 1 and 12")
			}
			res, err := appInstance.Orchestrator().ScrapeMonth(cmd.Context(), year, month)
			if err != nil {
				return fmt.Errorf("scrape %d-%d: %w", year, month, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tournaments (%d duplicates, %d geocoded)\n",
				res.File, res.Written, res.Duplicates, res.Geocoded)
			return err
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to scrape (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "month to scrape, 1-12 (default current)")
	return cmd
}
