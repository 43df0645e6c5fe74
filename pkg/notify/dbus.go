package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = dbus.ObjectPath("/org/freedesktop/Notifications")

	// DefaultCallTimeout bounds every call to the notification server.
	DefaultCallTimeout = 5 * time.Second
)

// DBusDeliverer shows alerts through the freedesktop notification server on
// the session bus. A repeated alert replaces the bubble of its previous
// delivery.
type DBusDeliverer struct {
	AppName string
	Icon    string
	// Timeout in ms, -1 = server default, 0 = never expire.
	Timeout int32
	// CallTimeout bounds each D-Bus call.
	CallTimeout time.Duration

	mu    sync.Mutex
	conn  *dbus.Conn
	shown map[string]uint32
}

var _ Deliverer = &DBusDeliverer{}

func NewDBusDeliverer(appName string) *DBusDeliverer {
	return &DBusDeliverer{
		AppName:     appName,
		Icon:        "battery-caution",
		Timeout:     -1,
		CallTimeout: DefaultCallTimeout,
		shown:       make(map[string]uint32),
	}
}

func (d *DBusDeliverer) object() (dbus.BusObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		conn, err := dbus.SessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		d.conn = conn
	}
	return d.conn.Object(notificationsService, notificationsPath), nil
}

// Authorize fails if no notification server answers on the session bus.
func (d *DBusDeliverer) Authorize() error {
	obj, err := d.object()
	if err != nil {
		return err
	}
	var caps []string
	if err := d.call(obj, notificationsService+".GetCapabilities").Store(&caps); err != nil {
		return fmt.Errorf("no notification server available: %w", err)
	}
	return nil
}

func (d *DBusDeliverer) Deliver(n Notification) error {
	obj, err := d.object()
	if err != nil {
		return err
	}

	d.mu.Lock()
	replaces := d.shown[n.ID]
	d.mu.Unlock()

	hints := map[string]dbus.Variant{
		"category": dbus.MakeVariant("device"),
		// critical, so the bubble stays until the user reacts
		"urgency": dbus.MakeVariant(byte(2)),
	}

	var id uint32
	err = d.call(obj, notificationsService+".Notify",
		d.AppName, replaces, d.Icon, n.Title, n.Body, []string{}, hints, d.Timeout,
	).Store(&id)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	d.mu.Lock()
	d.shown[n.ID] = id
	d.mu.Unlock()
	return nil
}

func (d *DBusDeliverer) Withdraw(id string) error {
	d.mu.Lock()
	shown, ok := d.shown[id]
	delete(d.shown, id)
	d.mu.Unlock()
	if !ok {
		return nil
	}

	obj, err := d.object()
	if err != nil {
		return err
	}
	return d.call(obj, notificationsService+".CloseNotification", shown).Err
}

// call is obj.Call with d.CallTimeout. A server that does not answer in
// time yields an error call.
func (d *DBusDeliverer) call(obj dbus.BusObject, method string, args ...interface{}) *dbus.Call {
	timeout := d.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	call := obj.Go(method, 0, make(chan *dbus.Call, 1), args...)
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-call.Done:
		return call
	case <-t.C:
		return &dbus.Call{
			Method: method,
			Err:    fmt.Errorf("%s did not answer within %s", method, timeout),
		}
	}
}
