package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of blindd",
		Long:    `Get covering position, motion state, calibration, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetStatus()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			cal, err := apiClient.GetCalibration()
			if err != nil {
				return fmt.Errorf("failed to get calibration: %w", err)
			}
			conf, err := apiClient.GetConfig()
			if err != nil {
				return fmt.Errorf("failed to get config: %w", err)
			}

			cmd.Println(bold("Covering status:"))
			state := st.State
			switch state {
			case "moving-up", "moving-down":
				state = color.GreenString(state)
			case "calibrating":
				state = color.YellowString(state)
			}
			cmd.Printf("  State: %s\n", bold("%s", state))
			if st.Calibrated {
				cmd.Printf("  Position: %s (raw %d)\n", bold("%.0f%%", st.Percent), st.Position)
			} else {
				cmd.Printf("  Position: %s (raw %d)\n", bold("unknown"), st.Position)
			}
			cmd.Println()

			cmd.Println(bold("Calibration:"))
			cmd.Println("  Calibrated: " + bool2Text(st.Calibrated))
			if st.AutoCalibrate {
				cmd.Println("    No stored calibration was found. Run 'blindd calibration start'.")
			}
			if st.Calibrated {
				cmd.Printf("  Travel bounds: %s\n", bold("%d - %d", cal.MinPosition, cal.MaxPosition))
			}
			if cal.Active {
				cmd.Printf("  Active step: %s\n", bold("%s", cal.Step))
				cmd.Printf("    %s\n", cal.Prompt)
			}
			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Motor pins: %s (speed %s)\n",
				bold("%v", conf.MotorPins), bold("%d steps/s", conf.DefaultSpeed))
			cmd.Printf("  Button pins: %s\n", bold("up %d / down %d", conf.ButtonUpPin, conf.ButtonDownPin))
			cmd.Println("  Zebra mode: " + bool2Text(conf.ZebraEnabled))
			if conf.ZebraEnabled {
				cmd.Printf("  Zebra offset: %s\n", bold("%d", cal.ZebraOffset))
			}
			cmd.Println("  Mock GPIO: " + bool2Text(conf.MockGPIO))
			cmd.Printf("  Schedules: %s\n", bold("%d", conf.ScheduleCount))
			if st.NextRun != "" {
				cmd.Printf("  Next scheduled move: %s at %s\n",
					bold("%.0f%%", st.NextPercent), bold("%s", st.NextRun))
			}

			return nil
		},
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
