package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battrem/pkg/client"
	"github.com/charlie0129/battrem/pkg/config"
	"github.com/charlie0129/battrem/pkg/powerinfo"
	"github.com/charlie0129/battrem/pkg/reminder"
)

type statusData struct {
	// reading is nil when the daemon cannot read the battery.
	reading  *powerinfo.Reading
	reminder *reminder.State
	config   *config.RawFileConfig
}

type statusJSON struct {
	Battery       *powerinfo.Reading    `json:"battery"`
	Reminder      *reminder.State       `json:"reminder"`
	Configuration *config.RawFileConfig `json:"configuration"`
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	reading, err := apiClient.GetReading()
	if err != nil && !errors.Is(err, client.ErrUnavailable) {
		return nil, fmt.Errorf("failed to get battery reading: %w", err)
	}

	st, err := apiClient.GetReminder()
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		reading:  reading,
		reminder: st,
		config:   conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of battrem",
		Long:    `Get battery reading, pending reminder, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.MarshalIndent(statusJSON{
					Battery:       data.reading,
					Reminder:      data.reminder,
					Configuration: data.config,
				}, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}

			conf := config.NewFileFromConfig(data.config, "")

			cmd.Println(bold("Battery status:"))
			if data.reading == nil {
				cmd.Println("  " + color.RedString("unavailable") + " (no battery found)")
			} else {
				cmd.Printf("  Current charge: %s\n", bold("%d%%", data.reading.Percent))
				state := color.RedString("discharging")
				if data.reading.IsCharging {
					state = color.GreenString("charging")
				}
				cmd.Printf("  State: %s\n", bold("%s", state))
			}

			cmd.Println()

			cmd.Println(bold("Reminder:"))
			st := data.reminder
			switch {
			case st.Kind == reminder.None:
				cmd.Println("  No reminder pending.")
			case !st.Active:
				cmd.Printf("  %s battery reminder due, but notifications are not available. Is a notification server running?\n", st.Kind)
			default:
				title, body := reminder.Content(st.Kind, st.Percent)
				cmd.Printf("  %s %s\n", bold("%s", title), body)
				cmd.Printf("  Repeats every %s, since %s\n",
					bold("%d minutes", st.Frequency), st.Since.Local().Format(time.Kitchen))
			}

			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Minimum threshold: %s\n", bold("%d%%", conf.MinThreshold()))
			cmd.Printf("  Maximum threshold: %s\n", bold("%d%%", conf.MaxThreshold()))
			cmd.Printf("  Reminder frequency: %s\n", bold("%d minutes", conf.ReminderFrequency()))
			cmd.Printf("  Allow other users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
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
