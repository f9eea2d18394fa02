package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/jobs"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/db"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Label weekly activity for a region and persist the labels",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		region, _ := f.GetString("region")
		threshold, _ := f.GetFloat64("threshold")

		rt, err := newRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.requireRegion(region); err != nil {
			return err
		}

		start, end, err := dateRange(cmd, time.Now().UTC().AddDate(0, 0, -7*rt.cfg.GetLookbackWeeks()))
		if err != nil {
			return err
		}
		if !f.Changed("threshold") {
			threshold = rt.cfg.GetPercentileThreshold()
		}

		weeks, err := rt.forecast.Labeler().Label(cmd.Context(), region, start, end, threshold)
		if err != nil {
			return err
		}
		return printJSON(weeks)
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Build and persist daily feature rows for a region",
	RunE: func(cmd *cobra.Command, _ []string) error {
		region, _ := cmd.Flags().GetString("region")

		rt, err := newRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.requireRegion(region); err != nil {
			return err
		}

		start, end, err := dateRange(cmd, time.Now().UTC().AddDate(0, 0, -28))
		if err != nil {
			return err
		}

		rows, err := rt.forecast.Features().BuildFeatures(cmd.Context(), region, start, end)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "built %d feature rows for %s\n", len(rows), region)
		out := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			out = append(out, map[string]any{
				"featureDate": row.FeatureDate.Format(time.DateOnly),
				"features":    row.Map(),
			})
		}
		return printJSON(out)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train every algorithm for a region",
	RunE: func(cmd *cobra.Command, _ []string) error {
		region, _ := cmd.Flags().GetString("region")
		endRaw, _ := cmd.Flags().GetString("end")

		rt, err := newRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.requireRegion(region); err != nil {
			return err
		}

		end, err := parseDate(endRaw, time.Time{})
		if err != nil {
			return err
		}
		res, err := rt.forecast.Forecaster().Train(cmd.Context(), region, end)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the surge probability for the week containing --target",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		region, _ := f.GetString("region")
		targetRaw, _ := f.GetString("target")
		version, _ := f.GetString("model")

		rt, err := newRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if err := rt.requireRegion(region); err != nil {
			return err
		}

		target, err := parseDate(targetRaw, time.Now().UTC().AddDate(0, 0, 7))
		if err != nil {
			return err
		}
		pred, err := rt.forecast.Forecaster().Predict(cmd.Context(), region, target, version)
		if err != nil {
			return err
		}
		return printJSON(pred)
	},
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Run the weekly inference batch now",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		retrain, _ := f.GetBool("retrain")
		only, _ := f.GetString("regions-only")

		rt, err := newRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.Close()

		opts := jobs.Options{Retrain: retrain}
		for _, id := range strings.Split(only, ",") {
			if id = strings.TrimSpace(id); id != "" {
				if err := rt.requireRegion(id); err != nil {
					return err
				}
				opts.Regions = append(opts.Regions, id)
			}
		}

		res, err := rt.forecast.WeeklyJob().Run(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one lead, or every open lead when --lead is omitted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		leadRaw, _ := f.GetString("lead")
		accountRaw, _ := f.GetString("account")

		rt, err := newRuntime(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()

		job := rt.leads.ScoringJob()
		if leadRaw == "" {
			res, err := job.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(res)
		}

		leadID, err := uuid.Parse(leadRaw)
		if err != nil {
			return fmt.Errorf("invalid --lead: %w", err)
		}
		var accountID *uuid.UUID
		if accountRaw != "" {
			id, err := uuid.Parse(accountRaw)
			if err != nil {
				return fmt.Errorf("invalid --account: %w", err)
			}
			accountID = &id
		}
		score, err := job.ScoreForAccount(cmd.Context(), leadID, accountID)
		if err != nil {
			return err
		}
		return printJSON(score)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and print the schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := db.RunMigrations(cmd.Context(), cfg, cfg.MigrationsDir); err != nil {
			return err
		}
		version, dirty, err := db.MigrationVersion(cfg, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"version": version, "dirty": dirty})
	},
}

func init() {
	for _, c := range []*cobra.Command{labelCmd, featuresCmd, trainCmd, predictCmd} {
		c.Flags().String("region", "", "region id from the registry")
	}
	for _, c := range []*cobra.Command{labelCmd, featuresCmd} {
		c.Flags().String("start", "", "first day, YYYY-MM-DD")
		c.Flags().String("end", "", "last day, YYYY-MM-DD (default today)")
	}
	labelCmd.Flags().Float64("threshold", 90, "surge percentile threshold (default SURGE_PERCENTILE_THRESHOLD)")
	trainCmd.Flags().String("end", "", "last labeled day, YYYY-MM-DD (default today)")
	predictCmd.Flags().String("target", "", "day inside the target week, YYYY-MM-DD (default today+7)")
	predictCmd.Flags().String("model", "", "model version to use instead of the selection policy")
	weeklyCmd.Flags().Bool("retrain", false, "retrain every region before predicting")
	weeklyCmd.Flags().String("regions-only", "", "comma-separated region ids to restrict the batch")
	scoreCmd.Flags().String("lead", "", "lead id to score")
	scoreCmd.Flags().String("account", "", "account id for personalized scoring")
}

func dateRange(cmd *cobra.Command, defaultStart time.Time) (time.Time, time.Time, error) {
	startRaw, _ := cmd.Flags().GetString("start")
	endRaw, _ := cmd.Flags().GetString("end")
	start, err := parseDate(startRaw, domain.DateOnly(defaultStart))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(endRaw, domain.DateOnly(time.Now()))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s is before --start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return start, end, nil
}
