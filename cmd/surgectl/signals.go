package main

import (
	"leadgen_backend/internal/demographics"

	"github.com/spf13/cobra"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Refresh census demographic context signals for regions",
	Long: `Fetch ACS 5-year county estimates and merge them into the weekly context
signals the feature engineer reads. Without --region every enabled region with
a county_fips is refreshed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		region, _ := f.GetString("region")
		weeks, _ := f.GetInt("weeks")

		rt, err := newRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.Close()

		ids := rt.registry.IDs()
		if region != "" {
			if err := rt.requireRegion(region); err != nil {
				return err
			}
			ids = []string{region}
		}

		svc := demographics.NewModule(rt.cfg, rt.forecast.Repository(), rt.registry, rt.log).Service()
		results := make([]any, 0, len(ids))
		for _, id := range ids {
			if r, ok := rt.registry.Get(id); ok && r.CountyFIPS == "" && region == "" {
				continue
			}
			res, err := svc.RefreshRegion(cmd.Context(), id, weeks)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return printJSON(results)
	},
}

func init() {
	signalsCmd.Flags().String("region", "", "region id from the registry (default all)")
	signalsCmd.Flags().Int("weeks", 27, "number of weeks, counting back from the current one, to write")
	rootCmd.AddCommand(signalsCmd)
}
