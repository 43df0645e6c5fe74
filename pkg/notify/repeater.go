package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type NotifyFunc func(data any)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Repeater runs a task on an "@every" schedule until stopped.
type Repeater struct {
	OnError NotifyFunc // called on task error
	Task    TaskFunc   // task callback

	parser cron.Parser

	schedule cron.Schedule
	nextRun  time.Time

	mu      sync.Mutex
	running bool
	tasks   sync.WaitGroup

	controlCh chan cron.Schedule
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewRepeater(task TaskFunc, onError NotifyFunc) *Repeater {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Repeater{
		OnError:   onError,
		Task:      task,
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh: make(chan cron.Schedule, 4),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Schedule sets the repeat interval. The first run happens one interval
// from now.
func (r *Repeater) Schedule(interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("repeat interval must be at least 1s, got %s", interval)
	}

	sh, err := r.parser.Parse("@every " + interval.String())
	if err != nil {
		return err
	}

	r.mu.Lock()
	running := r.running
	if !running {
		r.schedule = sh
		r.nextRun = sh.Next(time.Now())
	}
	r.mu.Unlock()

	if running {
		select {
		case r.controlCh <- sh:
		default:
		}
	}
	return nil
}

func (r *Repeater) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	select {
	case <-r.stopCh:
		return // stopped repeaters are not restarted
	default:
	}
	r.running = true
	go r.run()
}

// Stop stops the repeater and waits for its loop and any task still
// running to return.
func (r *Repeater) Stop() {
	r.mu.Lock()
	running := r.running
	select {
	case <-r.stopCh: // already closed
	default:
		close(r.stopCh)
	}
	r.mu.Unlock()

	if running {
		<-r.doneCh
	}
	r.tasks.Wait()
}

func (r *Repeater) Status() (nextRun time.Time, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nextRun = r.nextRun
	running = r.running
	return
}

func (r *Repeater) run() {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		close(r.doneCh)
		logrus.Trace("repeater stopped")
	}()

	logrus.Trace("repeater started")

	for {
		_, nextRun := r.snapshot()
		var timer *time.Timer
		if nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		select {
		case <-timer.C:
			if nextRun.IsZero() {
				continue
			}
			// Stop wins over a timer that fired at the same time.
			select {
			case <-r.stopCh:
				return
			default:
			}

			logrus.Tracef("running repeated task scheduled at %s", nextRun.Format(time.DateTime))
			r.tasks.Add(1)
			go func() {
				defer r.tasks.Done()
				if err := r.Task(); err != nil {
					r.sendError(fmt.Errorf("task failed: %v", err))
				}
			}()
			r.advanceNextRun()
		case <-r.stopCh:
			timer.Stop()
			return
		case sh := <-r.controlCh:
			timer.Stop()
			r.mu.Lock()
			r.schedule = sh
			r.nextRun = sh.Next(time.Now())
			r.mu.Unlock()
		}
	}
}

func (r *Repeater) snapshot() (cron.Schedule, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedule, r.nextRun
}

func (r *Repeater) advanceNextRun() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schedule == nil {
		return
	}
	next := r.schedule.Next(r.nextRun)
	// Catch up after system sleep instead of firing a burst.
	if now := time.Now(); !next.After(now) {
		next = r.schedule.Next(now)
	}
	r.nextRun = next
}

func (r *Repeater) sendError(err error) {
	if r.OnError == nil {
		return
	}

	go r.OnError(err)
}
