package powerinfo

import (
	"context"
	"fmt"

	"github.com/godbus/dbus"
	"github.com/sirupsen/logrus"
)

const (
	upowerService     = "org.freedesktop.UPower"
	upowerDeviceIface = "org.freedesktop.UPower.Device"
	propertiesIface   = "org.freedesktop.DBus.Properties"
)

// upowerProperties are the properties whose change means the reminder
// decision may change.
var upowerProperties = []string{"Percentage", "State", "OnBattery", "IsPresent"}

// UPowerWatcher listens for UPower property changes on the system bus.
type UPowerWatcher struct{}

var _ Watcher = &UPowerWatcher{}

func (w *UPowerWatcher) Watch(ctx context.Context, onChange func()) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}

	rule := fmt.Sprintf("type='signal',sender='%s',interface='%s',member='PropertiesChanged'", upowerService, propertiesIface)
	call := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
	if call.Err != nil {
		return fmt.Errorf("failed to subscribe to UPower signals: %w", call.Err)
	}
	defer conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	logrus.Info("listening to UPower power state changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return fmt.Errorf("system bus connection closed")
			}
			if isPowerStateSignal(sig) {
				logrus.WithField("path", sig.Path).Trace("received UPower power state change")
				onChange()
			}
		}
	}
}

// isPowerStateSignal reports whether sig is a PropertiesChanged signal of a
// UPower device (or UPower itself) touching a charge-related property.
func isPowerStateSignal(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != propertiesIface+".PropertiesChanged" || len(sig.Body) < 2 {
		return false
	}

	iface, ok := sig.Body[0].(string)
	if !ok || (iface != upowerDeviceIface && iface != upowerService) {
		return false
	}

	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false
	}
	for _, p := range upowerProperties {
		if _, ok := changed[p]; ok {
			return true
		}
	}

	// Some UPower versions only list invalidated properties.
	if len(sig.Body) >= 3 {
		if invalidated, ok := sig.Body[2].([]string); ok {
			for _, name := range invalidated {
				for _, p := range upowerProperties {
					if name == p {
						return true
					}
				}
			}
		}
	}

	return false
}
