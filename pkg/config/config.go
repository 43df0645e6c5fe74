package config

import (
	"errors"

	"github.com/charlie0129/battrem/pkg/reminder"
)

var (
	// ErrInvalidThreshold is returned when an update would leave the
	// thresholds out of range or min >= max.
	ErrInvalidThreshold = reminder.ErrInvalidThreshold

	// ErrInvalidFrequency is returned for a reminder frequency outside 1-60
	// minutes.
	ErrInvalidFrequency = errors.New("invalid reminder frequency")
)

// Config is the settings store of the monitor. Setters validate and
// reject invalid values, keeping the previous ones.
type Config interface {
	MinThreshold() int
	MaxThreshold() int
	ReminderFrequency() int
	AllowNonRootAccess() bool

	SetMinThreshold(int) error
	SetMaxThreshold(int) error
	SetReminderFrequency(int) error
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}

// Thresholds returns the thresholds of c.
func Thresholds(c Config) reminder.Thresholds {
	return reminder.Thresholds{
		MinPercent: c.MinThreshold(),
		MaxPercent: c.MaxThreshold(),
	}
}
