package powerinfo

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// PollWatcher turns a Reader into a Watcher by comparing successive
// readings. It is used when no event source is available.
type PollWatcher struct {
	Reader   Reader
	Interval time.Duration
}

var _ Watcher = &PollWatcher{}

func (w *PollWatcher) Watch(ctx context.Context, onChange func()) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	last, lastErr := w.Reader.Read()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			cur, err := w.Reader.Read()
			if cur == last && (err == nil) == (lastErr == nil) {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"percent":    cur.Percent,
				"isCharging": cur.IsCharging,
				"previous":   last.Percent,
			}).Trace("power state changed")
			last, lastErr = cur, err
			onChange()
		}
	}
}
