package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	var skipExisting bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror the published window, then scrape START_DATE..END_DATE",
		Long: `Runs the batch: every month from MONTHS_AHEAD months ahead of now,
walking back MONTHS_BACK months, is first copied from the configured mirror.
When START_DATE and END_DATE are both set, those months are then scraped
fresh and their snapshots overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			plan := appInstance.Plan()
			if cmd.Flags().Changed("skip-existing") {
				plan.SkipExisting = skipExisting
			}
			res, err := appInstance.Batch().Run(cmd.Context(), plan)
			if err != nil {
				return fmt.Errorf("run batch: %w", err)
			}
			appInstance.Logger().Info("run command finished",
				zap.String("run_id", res.RunID),
				zap.Int("scraped", len(res.Scraped)),
				zap.Int("failed", res.Failed),
			)
			if plan.Scrape && res.Failed > 0 && len(res.Scraped) == 0 && res.Skipped == 0 {
				return errors.New("every scraped month failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "leave months that already have a snapshot untouched")
	return cmd
}
