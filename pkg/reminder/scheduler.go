package reminder

import (
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battrem/pkg/powerinfo"
)

// Notifier schedules and cancels repeating user alerts by identifier.
type Notifier interface {
	Schedule(id, title, body string, interval time.Duration) error
	Cancel(id string) error
	CancelAll() error
}

// ContentUpdater is implemented by notifiers that can change the text of a
// pending alert without restarting its repeat interval.
type ContentUpdater interface {
	Update(id, title, body string) error
}

// Scheduler owns the single battery reminder. Apply, Refresh and Shutdown
// are expected to be called from one goroutine; State is safe to call from
// anywhere.
type Scheduler struct {
	notifier Notifier
	now      func() time.Time

	mu    sync.Mutex
	state State
}

func NewScheduler(n Notifier) *Scheduler {
	if n == nil {
		panic("notifier cannot be nil")
	}
	return &Scheduler{
		notifier: n,
		now:      time.Now,
		state:    State{Identifier: Identifier, Kind: None},
	}
}

// State returns a snapshot of the current reminder.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Identifier = Identifier
	s.state = st
}

// Apply cancels the pending reminder, then schedules a new one repeating
// every frequency minutes unless d is None.
func (s *Scheduler) Apply(d Decision, r powerinfo.Reading, frequency int) error {
	// Never schedule on top of a reminder that could not be cancelled.
	if err := s.notifier.Cancel(Identifier); err != nil {
		return pkgerrors.Wrapf(err, "failed to cancel %s", Identifier)
	}
	s.setState(State{Kind: None})

	if d == None {
		return nil
	}

	frequency = ClampFrequency(frequency)
	interval := time.Duration(frequency) * time.Minute
	title, body := Content(d, r.Percent)

	if err := s.notifier.Schedule(Identifier, title, body, interval); err != nil {
		s.setState(State{Kind: d, Percent: r.Percent, Frequency: frequency})
		return pkgerrors.Wrapf(err, "failed to schedule %s battery reminder", d)
	}

	st := State{
		Kind:      d,
		Active:    true,
		ID:        uuid.NewString(),
		Percent:   r.Percent,
		Frequency: frequency,
		Since:     s.now(),
	}
	s.setState(st)

	logrus.WithFields(logrus.Fields{
		"id":       st.ID,
		"kind":     d,
		"percent":  r.Percent,
		"interval": interval,
	}).Debug("battery reminder scheduled")

	return nil
}

// Unchanged reports whether applying d with frequency would leave the
// reminder as it is.
func (s *Scheduler) Unchanged(d Decision, frequency int) bool {
	st := s.State()
	if st.Kind != d {
		return false
	}
	if d == None {
		return !st.Active
	}
	return st.Active && st.Frequency == ClampFrequency(frequency)
}

// Refresh updates the text of the active reminder to the latest charge
// without touching its repeat interval. It is a no-op if the notifier
// cannot update content.
func (s *Scheduler) Refresh(r powerinfo.Reading) error {
	st := s.State()
	if !st.Active || st.Percent == r.Percent {
		return nil
	}
	u, ok := s.notifier.(ContentUpdater)
	if !ok {
		return nil
	}

	title, body := Content(st.Kind, r.Percent)
	if err := u.Update(Identifier, title, body); err != nil {
		return pkgerrors.Wrapf(err, "failed to update %s battery reminder", st.Kind)
	}

	s.mu.Lock()
	s.state.Percent = r.Percent
	s.mu.Unlock()
	return nil
}

// Shutdown cancels every pending reminder.
func (s *Scheduler) Shutdown() error {
	err := s.notifier.CancelAll()
	s.setState(State{Kind: None})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to cancel pending reminders")
	}
	return nil
}
