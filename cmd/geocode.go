package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGeocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <text>...",
		Short: "Resolve free-text city names against the gazetteer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, raw := range args {
				g, stage := appInstance.Resolver().Lookup(raw)
				if g == nil {
					if _, err := fmt.Fprintf(out, "%q\t%s\n", raw, stage); err != nil {
						return err
					}
					continue
				}
				if _, err := fmt.Fprintf(out, "%q\t%s\t%s\t%.4f\t%.4f\n", raw, stage, g.City, g.Lat, g.Lng); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
