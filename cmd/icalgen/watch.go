package main

import (
	"errors"

	"github.com/spf13/cobra"

	appLog "icalgen/internal/log"
	"icalgen/internal/pipeline"
	"icalgen/internal/watch"
)

var watchOnce bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate the configured calendars on a schedule",
	Long: `Watch regenerates every job under watch.jobs in the config file once at
startup and then on the watch.refresh cron schedule until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if len(conf.Watch.Jobs) == 0 {
			return errors.New("no watch jobs configured")
		}
		conv, err := pipeline.New(conf)
		if err != nil {
			return err
		}
		jobs, err := watch.Jobs(conf.Watch.Jobs, conv.Location)
		if err != nil {
			return err
		}
		w, err := watch.New(conf.Watch.Refresh, conv, jobs)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		failed := 0
		for _, o := range w.RunOnce(ctx) {
			if o.Err != nil {
				failed++
			}
		}
		if watchOnce {
			if failed > 0 {
				return errors.New("one or more watch jobs failed")
			}
			return nil
		}

		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		appLog.Info("signal received, shutting down")
		w.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run every job once and exit")
}
