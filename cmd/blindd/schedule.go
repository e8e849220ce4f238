package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blindd/blindd/pkg/config"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		GroupID: gAdvanced,
		Short:   "Move the covering on a cron schedule",
		Long: `Move the covering on a cron schedule.

Each schedule pairs a cron expression with a target position. Shortly
before a schedule fires, the daemon announces the upcoming move; a move
that cannot run (for example during calibration) is retried for a while
and reported if it keeps failing.

Running 'schedule' with no subcommand shows the configured schedules.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showSchedules(cmd)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the configured schedules",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return showSchedules(cmd)
			},
		},
		&cobra.Command{
			Use:   "set cron percent [cron percent ...]",
			Short: "Replace the schedules",
			Long:  `Replace the schedules with the given cron/percent pairs.`,
			Example: `  # Open at 08:00 and close at 21:30 every day
  blindd schedule set "0 8 * * *" 0 "30 21 * * *" 100

  # Half open at noon on weekdays
  blindd schedule set "0 12 * * 1-5" 50`,
			Args: func(_ *cobra.Command, args []string) error {
				if len(args) == 0 || len(args)%2 != 0 {
					return fmt.Errorf("expected cron/percent pairs, got %d argument(s)", len(args))
				}
				return nil
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				var schedules []config.Schedule
				for i := 0; i < len(args); i += 2 {
					pct, err := strconv.ParseFloat(args[i+1], 64)
					if err != nil {
						return fmt.Errorf("invalid percent %q: %w", args[i+1], err)
					}
					if pct < 0 || pct > 100 {
						return fmt.Errorf("percent must be between 0 and 100, got %s", args[i+1])
					}
					schedules = append(schedules, config.Schedule{
						Cron:    args[i],
						Percent: pct,
					})
				}
				ret, err := apiClient.SetSchedules(schedules)
				if err != nil {
					return fmt.Errorf("failed to set schedules: %w", err)
				}
				logrus.Infof("daemon responded: %s", ret)
				return nil
			},
		},
		&cobra.Command{
			Use:   "skip",
			Short: "Skip the next scheduled move",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ret, err := apiClient.SkipSchedule()
				if err != nil {
					return fmt.Errorf("failed to skip: %w", err)
				}
				logrus.Infof("daemon responded: %s", ret)
				return nil
			},
		},
		&cobra.Command{
			Use:   "postpone duration",
			Short: "Postpone the next scheduled move",
			Long:  `Postpone the next scheduled move by a duration such as 30m or 1h30m.`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := time.ParseDuration(args[0])
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[0], err)
				}
				ret, err := apiClient.PostponeSchedule(d)
				if err != nil {
					return fmt.Errorf("failed to postpone: %w", err)
				}
				logrus.Infof("daemon responded: %s", ret)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all schedules",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ret, err := apiClient.ClearSchedules()
				if err != nil {
					return fmt.Errorf("failed to clear schedules: %w", err)
				}
				logrus.Infof("daemon responded: %s", ret)
				return nil
			},
		},
	)

	return cmd
}

func showSchedules(cmd *cobra.Command) error {
	schedules, err := apiClient.GetSchedules()
	if err != nil {
		return fmt.Errorf("failed to get schedules: %w", err)
	}
	if len(schedules) == 0 {
		cmd.Println("No schedules configured.")
		return nil
	}
	for _, s := range schedules {
		cmd.Printf("  %s -> %s\n", bold("%s", s.Cron), bold("%.0f%%", s.Percent))
	}
	return nil
}
