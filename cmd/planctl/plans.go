package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

type planFlags struct {
	sync     bool
	tzOffset int
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.sync, "sync", false, "Create calendar events for the plan")
	cmd.Flags().IntVar(&f.tzOffset, "tz-offset", localOffsetMinutes(time.Now()), "Timezone offset in minutes (zones ahead of UTC are negative)")
}

func newDailyCmd() *cobra.Command {
	var (
		f    planFlags
		date string
	)
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Generate a daily plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := do(newClient(apiFlag).R().SetBody(map[string]any{
				"date":                    date,
				"sync":                    f.sync,
				"timezone_offset_minutes": f.tzOffset,
			}), http.MethodPost, userPath(userFlag, "/plans/daily"))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Plan date YYYY-MM-DD (default today)")
	f.register(cmd)
	return cmd
}

func newWeeklyCmd() *cobra.Command {
	var (
		f         planFlags
		weekStart string
	)
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Generate a seven-day plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := do(newClient(apiFlag).R().SetBody(map[string]any{
				"week_start":              weekStart,
				"sync":                    f.sync,
				"timezone_offset_minutes": f.tzOffset,
			}), http.MethodPost, userPath(userFlag, "/plans/weekly"))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().StringVarP(&weekStart, "week-start", "w", "", "First day YYYY-MM-DD (default today)")
	f.register(cmd)
	return cmd
}
