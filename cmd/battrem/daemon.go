package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battrem/pkg/daemon"
	"github.com/charlie0129/battrem/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	opts := daemon.Options{
		Notifier:     daemon.NotifierDBus,
		TickInterval: daemon.DefaultTickInterval,
		PollInterval: 10 * time.Second,
	}

	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run battrem daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("battrem daemon starting")

			opts.ConfigPath = configPath
			opts.UnixSocketPath = unixSocketPath
			return daemon.Run(opts)
		},
	}

	f := cmd.Flags()

	f.BoolVar(&opts.AllowNonRoot, "always-allow-non-root-access", false,
		"Make the daemon socket accessible to every user.")
	f.StringVar(&opts.Notifier, "notifier", opts.Notifier,
		"how reminders are shown: dbus (desktop notifications) or log")
	f.DurationVar(&opts.TickInterval, "tick-interval", opts.TickInterval,
		"re-evaluate the battery this often even without power events")
	f.DurationVar(&opts.PollInterval, "poll-interval", opts.PollInterval,
		"battery polling interval when UPower is unavailable")

	return cmd
}
