package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/syncfeed"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the configured directory for peer change-file drops and merge them as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		replica, save, closeStore, err := openReplica(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		events := make(chan syncfeed.Event, 16)
		go func() {
			if err := syncfeed.Watch(cmd.Context(), cfg.WatchDir, replica, events, watchDebounce); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "watch: %v\n", err)
			}
			close(events)
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", cfg.WatchDir)
		for ev := range events {
			if ev.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", ev.Path, ev.Err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d accepted\n", ev.Path, ev.Report.Accepted())
			if err := save(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "save snapshot: %v\n", err)
			}
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "debounce window for rapid successive writes to the same file")
	rootCmd.AddCommand(watchCmd)
}
