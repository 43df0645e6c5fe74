package powerinfo

import (
	"context"
	"errors"
)

// ErrHardwareUnavailable is returned when no battery is present or the
// battery cannot be queried.
var ErrHardwareUnavailable = errors.New("battery hardware unavailable")

// Reading is a single observation of the power source.
type Reading struct {
	Percent    int  `json:"percent"`
	IsCharging bool `json:"isCharging"`
}

// Unavailable is the sentinel reading returned together with
// ErrHardwareUnavailable.
var Unavailable = Reading{Percent: 0, IsCharging: false}

// Reader reports the current battery charge and charging status.
type Reader interface {
	Read() (Reading, error)
}

// Watcher delivers power-state-change events. Watch blocks until ctx is
// done or the event source fails.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}
