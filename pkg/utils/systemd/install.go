// Package systemd installs and removes the blindd systemd unit.
package systemd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	unitPath = "/etc/systemd/system/blindd.service"
)

const unitTemplate = `[Unit]
Description=blindd window covering daemon
After=local-fs.target

[Service]
Type=simple
ExecStart=/path/to/blindd daemon
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

func Install() error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	tmpl := strings.ReplaceAll(unitTemplate, "/path/to/blindd", exePath)

	logrus.Infof("writing systemd unit to %s", unitPath)

	// warn if the file already exists
	_, err = os.Stat(unitPath)
	if err == nil {
		logrus.Errorf("%s already exists", unitPath)
		return fmt.Errorf("%s already exists. This is often caused by an incorrect installation. Did you forget to uninstall blindd before installing it again? Please uninstall it first, by running 'sudo blindd uninstall'. If you already removed blindd, you can solve this problem by 'sudo rm %s'", unitPath, unitPath)
	}

	err = os.WriteFile(unitPath, []byte(tmpl), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	err = exec.Command(
		"systemctl",
		"daemon-reload",
	).Run()
	if err != nil {
		return fmt.Errorf("failed to reload systemd units: %w", err)
	}

	logrus.Infof("starting blindd")

	err = exec.Command(
		"systemctl",
		"enable",
		"--now",
		"blindd.service",
	).Run()
	if err != nil {
		return fmt.Errorf("failed to enable blindd.service: %w", err)
	}

	return nil
}
