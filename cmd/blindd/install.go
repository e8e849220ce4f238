package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blindd/blindd/pkg/config"
	"github.com/blindd/blindd/pkg/utils/systemd"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install blindd (system-wide)",
		GroupID: gInstallation,
		Long: `Install blindd daemon to systemd (system-wide).

This makes blindd run in the background and automatically start on boot. You must run this command as root.

By default, only root user is allowed to access the blindd daemon for security reasons. As a result, you will need to run blindd client as root to control the covering, e.g. setting its position. If you want to allow non-root users, i.e., you, to access the daemon, you can use the --allow-non-root-access flag, so you don't have to use sudo every time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			conf.SetAllowNonRootAccess(allowNonRootAccess)
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the blindd daemon.")
			} else {
				logrus.Info("only root user is allowed to access the blindd daemon.")
			}

			err = systemd.Install()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v. Are you root?", err)
			}

			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("`systemd' will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run ``blindd install'' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access blindd daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall blindd (system-wide)",
		GroupID: gInstallation,
		Long: `Uninstall blindd daemon from systemd (system-wide).

This stops blindd and removes it from systemd.

You must run this command as root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := systemd.Uninstall()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			fmt.Println("successfully uninstalled")

			cmd.Printf("Your config is kept in %s, in case you want to use `blindd' again. If you want a complete uninstall, you can remove both config file and blindd itself manually.\n", configPath)

			return nil
		},
	}
}
