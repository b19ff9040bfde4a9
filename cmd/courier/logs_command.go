package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/logging"
	"courier/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent entries from the courier log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if filter.MinLevel != "" {
				if _, ok := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}[filter.MinLevel]; !ok {
					return fmt.Errorf("--level %q is not one of debug, info, warn, error", filter.MinLevel)
				}
			}
			path := logging.FilePath(cfg)
			if path == "" {
				return errors.New("file logging is disabled (paths.log_dir is empty)")
			}

			window, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range filter.Apply(window.Lines) {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, window.Offset, 500*time.Millisecond, func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new entries until interrupted")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVarP(&filter.Configuration, "configuration", "C", "", "Only entries for this configuration")
	cmd.Flags().StringVar(&filter.DeliveryID, "delivery", "", "Only entries for this delivery id")
	cmd.Flags().StringVar(&filter.Contains, "grep", "", "Only entries containing this text")
	return cmd
}
