package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battrem/pkg/reminder"
	"github.com/charlie0129/battrem/pkg/types"
	"github.com/charlie0129/battrem/pkg/version"
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

func NewMinThresholdCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "min-threshold [percentage]",
		Short:   "Set the charge below which you are reminded to plug in",
		GroupID: gBasic,
		Long: `Set the minimum threshold.

This is a percentage from 1 to 100 and must be below the maximum threshold. When the battery is discharging and its charge drops below this value, a "Low Battery" reminder repeats until you plug in.`,
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := parseIntArg(args, "threshold")
			if err != nil {
				return err
			}

			res, err := apiClient.SetMinThreshold(v)
			if err != nil {
				return fmt.Errorf("failed to set minimum threshold: %w", err)
			}

			logrus.Infof("successfully set minimum threshold to %d%%", v)
			logEvaluation(res)

			return nil
		},
	}
}

func NewMaxThresholdCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "max-threshold [percentage]",
		Short:   "Set the charge above which you are reminded to unplug",
		GroupID: gBasic,
		Long: `Set the maximum threshold.

This is a percentage from 1 to 100 and must be above the minimum threshold. When the battery is charging and its charge rises above this value, a "High Battery" reminder repeats until you unplug.`,
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := parseIntArg(args, "threshold")
			if err != nil {
				return err
			}

			res, err := apiClient.SetMaxThreshold(v)
			if err != nil {
				return fmt.Errorf("failed to set maximum threshold: %w", err)
			}

			logrus.Infof("successfully set maximum threshold to %d%%", v)
			logEvaluation(res)

			return nil
		},
	}
}

func NewFrequencyCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "frequency [minutes]",
		Short:   "Set how often a reminder repeats",
		GroupID: gBasic,
		Long: `Set the reminder frequency.

This is the number of minutes, from 1 to 60, between two deliveries of the same reminder. A pending reminder is rescheduled with the new frequency.`,
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := parseIntArg(args, "frequency")
			if err != nil {
				return err
			}

			res, err := apiClient.SetReminderFrequency(v)
			if err != nil {
				return fmt.Errorf("failed to set reminder frequency: %w", err)
			}

			logrus.Infof("successfully set reminder frequency to %d minutes", v)
			logEvaluation(res)

			return nil
		},
	}
}

func NewEvaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "evaluate",
		Short:   "Check the battery now",
		GroupID: gAdvanced,
		Long: `Read the battery now and reschedule the reminder from scratch.

A pending reminder restarts its repeat interval.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			res, err := apiClient.Evaluate()
			if err != nil {
				return err
			}
			logEvaluation(res)
			return nil
		},
	}
}

func logEvaluation(res *types.Evaluation) {
	if res == nil {
		return
	}
	entry := logrus.WithFields(logrus.Fields{
		"percent":    res.Reading.Percent,
		"isCharging": res.Reading.IsCharging,
		"decision":   res.Decision,
	})
	if res.Error != "" {
		entry.Warnf("battery evaluated with error: %s", res.Error)
		return
	}
	switch res.Decision {
	case reminder.None:
		entry.Info("no reminder needed")
	default:
		entry.Infof("%s battery reminder every %d minutes", res.Decision, res.Reminder.Frequency)
	}
}
