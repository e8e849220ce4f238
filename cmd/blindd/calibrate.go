package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCalibrationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibration",
		Aliases: []string{"calibrate", "cal"},
		GroupID: gAdvanced,
		Short:   "Calibrate the travel bounds of the covering",
		Long: `Calibrate the travel bounds of the covering.

Calibration walks through a few steps. Each step prompts you to move the
covering to a reference point with 'blindd up' / 'blindd down' / 'blindd stop',
then capture it with 'blindd calibration step'. The captured bounds are saved
once the final step completes.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start a calibration workflow",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cal, err := apiClient.StartCalibration()
				if err != nil {
					return fmt.Errorf("failed to start calibration: %w", err)
				}
				cmd.Printf("Calibration started. Current step: %s\n", bold("%s", cal.Step))
				cmd.Println(cal.Prompt)
				return nil
			},
		},
		&cobra.Command{
			Use:   "step",
			Short: "Capture the current position and advance to the next step",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cal, err := apiClient.StepCalibration()
				if err != nil {
					return fmt.Errorf("failed to advance calibration: %w", err)
				}
				if !cal.Active {
					cmd.Println("Calibration complete.")
					cmd.Printf("Travel bounds: %s\n", bold("%d - %d", cal.MinPosition, cal.MaxPosition))
					if cal.ZebraOffset != 0 {
						cmd.Printf("Zebra offset: %s\n", bold("%d", cal.ZebraOffset))
					}
					return nil
				}
				cmd.Printf("Current step: %s\n", bold("%s", cal.Step))
				cmd.Println(cal.Prompt)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cancel",
			Short: "Cancel the calibration workflow",
			Long:  `Cancel the calibration workflow. Previously saved bounds are kept.`,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ret, err := apiClient.CancelCalibration()
				if err != nil {
					return fmt.Errorf("failed to cancel calibration: %w", err)
				}
				logrus.Infof("daemon responded: %s", ret)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the calibration state",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cal, err := apiClient.GetCalibration()
				if err != nil {
					return fmt.Errorf("failed to get calibration: %w", err)
				}
				cmd.Println("Calibrated: " + bool2Text(cal.Calibrated))
				if cal.Calibrated {
					cmd.Printf("Travel bounds: %s\n", bold("%d - %d", cal.MinPosition, cal.MaxPosition))
					if cal.ZebraOffset != 0 {
						cmd.Printf("Zebra offset: %s\n", bold("%d", cal.ZebraOffset))
					}
				}
				if cal.Active {
					cmd.Printf("Active step: %s\n", bold("%s", cal.Step))
					cmd.Println(cal.Prompt)
				}
				return nil
			},
		},
	)

	return cmd
}
