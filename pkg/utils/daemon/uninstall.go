package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Uninstall stops and disables the user unit and removes its file.
func Uninstall() error {
	logrus.Infof("stopping battrem")

	if err := systemctl("disable", "--now", unitName); err != nil {
		// The unit may never have been loaded. Removing the file is still
		// worth trying.
		logrus.Warn(err)
	}

	path, err := unitPath()
	if err != nil {
		return fmt.Errorf("failed to locate systemd user unit directory: %w", err)
	}

	logrus.Infof("removing systemd user unit")

	// if the file doesn't exist, we don't need to remove it
	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	err = os.Remove(path)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return systemctl("daemon-reload")
}
