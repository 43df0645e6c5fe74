package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type entry struct {
	repeater *Repeater
	content  Notification
	interval time.Duration
}

// Center implements repeating alerts on top of a Deliverer. Each
// identifier has at most one Repeater; scheduling an identifier again
// replaces it.
type Center struct {
	deliverer Deliverer

	mu         sync.Mutex
	authorized bool
	entries    map[string]*entry
}

func NewCenter(d Deliverer) *Center {
	if d == nil {
		panic("deliverer cannot be nil")
	}
	return &Center{
		deliverer: d,
		entries:   make(map[string]*entry),
	}
}

// Authorize asks the deliverer whether alerts can be shown. A refusal is
// returned wrapped in ErrPermissionDenied and is asked again on the next
// Schedule.
func (c *Center) Authorize() error {
	c.mu.Lock()
	authorized := c.authorized
	c.mu.Unlock()
	if authorized {
		return nil
	}

	// The deliverer may block on the bus, so it is asked without c.mu.
	if err := c.deliverer.Authorize(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	c.mu.Lock()
	c.authorized = true
	c.mu.Unlock()
	return nil
}

// Schedule delivers the alert every interval, starting one interval from
// now, until it is cancelled.
func (c *Center) Schedule(id, title, body string, interval time.Duration) error {
	if err := c.Authorize(); err != nil {
		return err
	}

	e := &entry{
		content:  Notification{ID: id, Title: title, Body: body},
		interval: interval,
	}
	e.repeater = NewRepeater(func() error { return c.fire(id, e) }, func(data any) {
		logrus.WithField("id", id).Errorf("failed to deliver reminder: %v", data)
	})
	if err := e.repeater.Schedule(interval); err != nil {
		return err
	}

	c.mu.Lock()
	old, replaced := c.entries[id]
	c.entries[id] = e
	e.repeater.Start()
	c.mu.Unlock()

	// Stop waits for a delivery in flight, which needs c.mu.
	if replaced {
		old.repeater.Stop()
	}

	logrus.WithFields(logrus.Fields{
		"id":       id,
		"title":    title,
		"interval": interval,
	}).Debug("scheduled repeating notification")
	return nil
}

// fire delivers e unless it has been cancelled or replaced meanwhile.
func (c *Center) fire(id string, e *entry) error {
	c.mu.Lock()
	cur, ok := c.entries[id]
	n := e.content
	c.mu.Unlock()
	if !ok || cur != e {
		return nil
	}
	return c.deliverer.Deliver(n)
}

// Update replaces the text of a pending alert, keeping its schedule.
func (c *Center) Update(id, title, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return fmt.Errorf("notification %s is not scheduled", id)
	}
	e.content.Title = title
	e.content.Body = body
	return nil
}

// Cancel stops the alert. Cancelling an unknown id is a no-op.
func (c *Center) Cancel(id string) error {
	c.mu.Lock()
	e, ok := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	// A delivery in flight finishes before the withdraw, so its bubble
	// is closed too.
	e.repeater.Stop()
	if err := c.deliverer.Withdraw(id); err != nil {
		logrus.WithField("id", id).Debugf("failed to withdraw notification: %v", err)
	}
	logrus.WithField("id", id).Debug("cancelled repeating notification")
	return nil
}

func (c *Center) CancelAll() error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.Cancel(id); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the next delivery time of id.
func (c *Center) Pending(id string) (next time.Time, ok bool) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next, _ = e.repeater.Status()
	return next, true
}
