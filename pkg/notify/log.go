package notify

import (
	"github.com/sirupsen/logrus"
)

// LogDeliverer writes alerts to the log. It never refuses authorization.
type LogDeliverer struct{}

var _ Deliverer = LogDeliverer{}

func (LogDeliverer) Authorize() error { return nil }

func (LogDeliverer) Deliver(n Notification) error {
	logrus.WithFields(logrus.Fields{
		"id":   n.ID,
		"body": n.Body,
	}).Warn(n.Title)
	return nil
}

func (LogDeliverer) Withdraw(string) error { return nil }
