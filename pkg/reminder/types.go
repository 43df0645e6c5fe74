package reminder

import (
	"errors"
	"fmt"
	"time"
)

// Identifier is the single notification identifier used for every battery
// reminder, so at most one reminder is ever pending.
const Identifier = "BatteryReminder"

const (
	MinFrequency = 1
	MaxFrequency = 60
)

// ErrInvalidThreshold is returned when thresholds are out of range or the
// minimum is not strictly below the maximum.
var ErrInvalidThreshold = errors.New("invalid threshold")

// Thresholds are the charge percentages that trigger reminders.
type Thresholds struct {
	MinPercent int `json:"minPercent"`
	MaxPercent int `json:"maxPercent"`
}

// Validate checks 1 <= min < max <= 100.
func (t Thresholds) Validate() error {
	if t.MinPercent < 1 || t.MinPercent > 100 {
		return fmt.Errorf("%w: minimum threshold must be between 1 and 100, got %d", ErrInvalidThreshold, t.MinPercent)
	}
	if t.MaxPercent < 1 || t.MaxPercent > 100 {
		return fmt.Errorf("%w: maximum threshold must be between 1 and 100, got %d", ErrInvalidThreshold, t.MaxPercent)
	}
	if t.MinPercent >= t.MaxPercent {
		return fmt.Errorf("%w: minimum threshold (%d) must be less than maximum threshold (%d)", ErrInvalidThreshold, t.MinPercent, t.MaxPercent)
	}
	return nil
}

// Decision is the outcome of evaluating a battery reading.
type Decision int

const (
	// None means no reminder should be pending.
	None Decision = iota
	// Low means the battery is below the minimum threshold while unplugged.
	Low
	// High means the battery is above the maximum threshold while charging.
	High
)

func (d Decision) String() string {
	switch d {
	case None:
		return "none"
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Decision) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none":
		*d = None
	case "low":
		*d = Low
	case "high":
		*d = High
	default:
		return fmt.Errorf("unknown decision %q", string(b))
	}
	return nil
}

// State describes the reminder currently owned by the Scheduler.
type State struct {
	Identifier string   `json:"identifier"`
	Kind       Decision `json:"kind"`
	Active     bool     `json:"active"`
	// ID identifies one scheduled reminder instance, for logs and events.
	ID        string    `json:"id,omitempty"`
	Percent   int       `json:"percent,omitempty"`
	Frequency int       `json:"frequency,omitempty"`
	Since     time.Time `json:"since,omitempty"`
}

// ClampFrequency limits minutes to [MinFrequency, MaxFrequency].
func ClampFrequency(minutes int) int {
	if minutes < MinFrequency {
		return MinFrequency
	}
	if minutes > MaxFrequency {
		return MaxFrequency
	}
	return minutes
}
