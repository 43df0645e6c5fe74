// Package notify delivers repeating desktop reminders.
package notify

import "errors"

// ErrPermissionDenied is returned by Schedule when alerts are not
// authorized, e.g. no notification server accepts them.
var ErrPermissionDenied = errors.New("notification permission denied")

// Notification is a single alert delivery.
type Notification struct {
	ID    string
	Title string
	Body  string
}

// Deliverer shows one alert to the user.
type Deliverer interface {
	// Authorize checks that alerts can be delivered at all.
	Authorize() error
	Deliver(n Notification) error
	// Withdraw removes any alert still shown for id.
	Withdraw(id string) error
}
