package powerinfo

import (
	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BatteryReader reads the first present battery of the host.
type BatteryReader struct {
	getAll func() ([]*battery.Battery, error)
}

var _ Reader = &BatteryReader{}

func NewBatteryReader() *BatteryReader {
	return &BatteryReader{getAll: battery.GetAll}
}

// Read returns Unavailable and ErrHardwareUnavailable if there is no
// usable battery.
func (r *BatteryReader) Read() (Reading, error) {
	batteries, err := r.getAll()
	if err != nil {
		// Partial errors still come with usable batteries.
		logrus.WithError(err).Trace("battery query reported errors")
	}

	for _, bat := range batteries {
		if bat == nil || bat.Full <= 0 {
			continue
		}
		return readingFromBattery(bat), nil
	}

	if err != nil {
		return Unavailable, pkgerrors.Wrapf(ErrHardwareUnavailable, "failed to query batteries: %v", err)
	}
	return Unavailable, pkgerrors.Wrap(ErrHardwareUnavailable, "no batteries found")
}

func readingFromBattery(bat *battery.Battery) Reading {
	percent := int(bat.Current) * 100 / int(bat.Full)
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	// Unknown, Full and Empty states all count as not charging, so a
	// low-battery reminder is never suppressed by a missing flag.
	return Reading{
		Percent:    percent,
		IsCharging: bat.State == battery.Charging,
	}
}
