package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus"
	"github.com/sirupsen/logrus"
)

const (
	logindService = "org.freedesktop.login1"
	logindManager = "org.freedesktop.login1.Manager"
)

// sleepListener re-evaluates when the system finishes waking up. The power
// source may have changed while asleep and UPower does not always report it.
type sleepListener struct {
	onWake func()

	lastSleepTime time.Time
	lastWakeTime  time.Time
}

func (l *sleepListener) listen(ctx context.Context) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}

	rule := fmt.Sprintf("type='signal',sender='%s',interface='%s',member='PrepareForSleep'", logindService, logindManager)
	call := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
	if call.Err != nil {
		return fmt.Errorf("failed to subscribe to logind signals: %w", call.Err)
	}
	defer conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)

	ch := make(chan *dbus.Signal, 4)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return fmt.Errorf("system bus connection closed")
			}
			l.handle(sig)
		}
	}
}

func (l *sleepListener) handle(sig *dbus.Signal) {
	if sig == nil || sig.Name != logindManager+".PrepareForSleep" || len(sig.Body) < 1 {
		return
	}
	start, ok := sig.Body[0].(bool)
	if !ok {
		return
	}

	if start {
		logrus.Debugln("received PrepareForSleep(true), system will go to sleep")
		l.lastSleepTime = time.Now()
		return
	}

	l.lastWakeTime = time.Now()
	entry := logrus.NewEntry(logrus.StandardLogger())
	if !l.lastSleepTime.IsZero() {
		entry = entry.WithField("slept", l.lastWakeTime.Sub(l.lastSleepTime).Round(time.Second).String())
	}
	entry.Debugln("received PrepareForSleep(false), system has finished waking up")
	l.onWake()
}
