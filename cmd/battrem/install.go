package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battrem/pkg/config"
	daemonutils "github.com/charlie0129/battrem/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	notifier := "dbus"

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install battrem as a systemd user service",
		GroupID: gInstallation,
		Long: `Install battrem daemon as a systemd user service.

This makes battrem run in the background and start with your session. Do not run this command as root: reminders are shown on your desktop session.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if os.Geteuid() == 0 {
				logrus.Warn("installing as root, reminders will go to root's session")
			}

			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}
			// Write the config so it can be edited before the first change.
			if err := conf.Save(); err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			args := []string{
				"--config=" + configPath,
				"--daemon-socket=" + unixSocketPath,
				"--notifier=" + notifier,
			}
			if err := daemonutils.Install(args); err != nil {
				return fmt.Errorf("failed to install daemon: %w", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("systemd will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run ``battrem install'' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().StringVar(&notifier, "notifier", notifier, "how the installed daemon shows reminders: dbus or log")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall battrem",
		GroupID: gInstallation,
		Long: `Stop battrem and remove its systemd user service.

Pending reminders are withdrawn when the daemon stops. The config file is kept.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := daemonutils.Uninstall(); err != nil {
				return fmt.Errorf("failed to uninstall daemon: %w", err)
			}

			logrus.Infof("successfully uninstalled battrem")

			return nil
		},
	}
}
