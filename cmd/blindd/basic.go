package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blindd/blindd/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "up",
		Short:   "Start moving the covering up",
		GroupID: gBasic,
		Long: `Start moving the covering up.

The covering keeps moving until it reaches the calibrated top or you run 'blindd stop'.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.MoveUp()
			if err != nil {
				return fmt.Errorf("failed to move up: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewDownCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "down",
		Short:   "Start moving the covering down",
		GroupID: gBasic,
		Long: `Start moving the covering down.

The covering keeps moving until it reaches the calibrated bottom or you run 'blindd stop'.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.MoveDown()
			if err != nil {
				return fmt.Errorf("failed to move down: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Stop any motion",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := apiClient.Stop(); err != nil {
				return fmt.Errorf("failed to stop: %v", err)
			}
			logrus.Info("stopped")
			return nil
		},
	}
}

func NewTopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "top",
		Short:   "Move the covering to its top position",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.GotoTop()
			if err != nil {
				return fmt.Errorf("failed to move to top: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewBottomCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "bottom",
		Short:   "Move the covering to its bottom position",
		GroupID: gBasic,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.GotoBottom()
			if err != nil {
				return fmt.Errorf("failed to move to bottom: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	}
}

func NewPositionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "position [percentage]",
		Short:   "Get or set the covering position",
		GroupID: gBasic,
		Long: `Get or set the covering position.

Without arguments, prints the current position. With a percentage (0 is
fully up, 100 is fully down), moves the covering there. Requires a
completed calibration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				pos, err := apiClient.GetPosition()
				if err != nil {
					return fmt.Errorf("failed to get position: %v", err)
				}
				if !pos.Calibrated {
					cmd.Printf("Raw position: %d (not calibrated)\n", pos.Raw)
					return nil
				}
				cmd.Printf("Position: %.0f%% (raw %d)\n", pos.Percent, pos.Raw)
				return nil
			}

			pct, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid percentage: %v", err)
			}
			if pct < 0 || pct > 100 {
				return fmt.Errorf("percentage must be between 0 and 100, got %s", args[0])
			}

			if _, err := apiClient.SetPosition(pct); err != nil {
				return fmt.Errorf("failed to set position: %v", err)
			}
			logrus.Infof("moving to %.0f%%", pct)
			return nil
		},
	}
}
