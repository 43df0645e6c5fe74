package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battrem/pkg/config"
	"github.com/charlie0129/battrem/pkg/events"
	"github.com/charlie0129/battrem/pkg/notify"
	"github.com/charlie0129/battrem/pkg/powerinfo"
	"github.com/charlie0129/battrem/pkg/reminder"
	"github.com/charlie0129/battrem/pkg/types"
)

type fakeReader struct {
	mu      sync.Mutex
	reading powerinfo.Reading
	err     error
}

func (f *fakeReader) Read() (powerinfo.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return powerinfo.Unavailable, f.err
	}
	return f.reading, nil
}

func (f *fakeReader) set(percent int, charging bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reading = powerinfo.Reading{Percent: percent, IsCharging: charging}
	f.err = nil
}

func (f *fakeReader) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type pending struct {
	title    string
	interval time.Duration
}

type fakeNotifier struct {
	mu          sync.Mutex
	active      map[string]pending
	schedules   int
	cancelAlls  int
	scheduleErr error

	inFlight atomic.Int32
	overlaps atomic.Int32
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{active: map[string]pending{}}
}

func (f *fakeNotifier) enter() func() {
	if f.inFlight.Add(1) > 1 {
		f.overlaps.Add(1)
	}
	// widen the window for overlapping callers
	time.Sleep(time.Millisecond)
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeNotifier) Schedule(id, title, _ string, interval time.Duration) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.schedules++
	f.active[id] = pending{title: title, interval: interval}
	return nil
}

func (f *fakeNotifier) Cancel(id string) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, id)
	return nil
}

func (f *fakeNotifier) CancelAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAlls++
	f.active = map[string]pending{}
	return nil
}

func (f *fakeNotifier) get(id string) (pending, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.active[id]
	return p, ok
}

func (f *fakeNotifier) scheduleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedules
}

type monitorFixture struct {
	reader   *fakeReader
	notifier *fakeNotifier
	conf     *config.File
	hub      *events.EventHub
	monitor  *Monitor

	cancel context.CancelFunc
	done   chan error
}

func startMonitor(t *testing.T, percent int, charging bool) *monitorFixture {
	t.Helper()

	f := &monitorFixture{
		reader:   &fakeReader{},
		notifier: newFakeNotifier(),
		conf:     config.NewFileFromConfig(nil, filepath.Join(t.TempDir(), "config.json")),
		hub:      events.NewEventHub(),
		done:     make(chan error, 1),
	}
	f.reader.set(percent, charging)
	// Long tick so that only explicit evaluations happen during a test.
	f.monitor = NewMonitor(f.conf, f.reader, reminder.NewScheduler(f.notifier), f.hub, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- f.monitor.Run(ctx) }()

	t.Cleanup(func() {
		f.stop(t)
	})
	return f
}

func (f *monitorFixture) stop(t *testing.T) {
	t.Helper()
	f.cancel()
	select {
	case err := <-f.done:
		require.NoError(t, err)
		f.done <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func (f *monitorFixture) evaluate(t *testing.T, trigger types.Trigger) types.Evaluation {
	t.Helper()
	res, err := f.monitor.Evaluate(context.Background(), trigger)
	require.NoError(t, err)
	return res
}

func TestMonitorScenarios(t *testing.T) {
	tests := []struct {
		name      string
		percent   int
		charging  bool
		want      reminder.Decision
		wantTitle string
	}{
		{name: "low and discharging", percent: 15, charging: false, want: reminder.Low, wantTitle: "Low Battery 15%!"},
		{name: "low but charging", percent: 15, charging: true, want: reminder.None},
		{name: "high and charging", percent: 85, charging: true, want: reminder.High, wantTitle: "High Battery 85%!"},
		{name: "high but discharging", percent: 85, charging: false, want: reminder.None},
		{name: "in range", percent: 50, charging: false, want: reminder.None},
		{name: "exactly at min", percent: 20, charging: false, want: reminder.None},
		{name: "exactly at max", percent: 80, charging: true, want: reminder.None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := startMonitor(t, tt.percent, tt.charging)

			res := f.evaluate(t, types.TriggerTick)
			assert.Equal(t, tt.want, res.Decision)
			assert.Empty(t, res.Error)

			p, ok := f.notifier.get(reminder.Identifier)
			if tt.want == reminder.None {
				assert.False(t, ok)
				assert.False(t, f.monitor.State().Active)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantTitle, p.title)
			assert.Equal(t, 5*time.Minute, p.interval)

			st := f.monitor.State()
			assert.True(t, st.Active)
			assert.Equal(t, tt.want, st.Kind)
			assert.NotEmpty(t, st.ID)
		})
	}
}

func TestMonitorPluggingInCancelsLowReminder(t *testing.T) {
	f := startMonitor(t, 15, false)

	res := f.evaluate(t, types.TriggerTick)
	require.Equal(t, reminder.Low, res.Decision)

	f.reader.set(15, true)
	require.NoError(t, f.monitor.OnPowerStateChanged(context.Background()))

	_, ok := f.notifier.get(reminder.Identifier)
	assert.False(t, ok)
	assert.Equal(t, reminder.None, f.monitor.State().Kind)
}

func TestMonitorTickKeepsRunningReminder(t *testing.T) {
	f := startMonitor(t, 15, false)

	f.evaluate(t, types.TriggerTick)
	first := f.monitor.State()
	require.True(t, first.Active)
	scheduled := f.notifier.scheduleCount()

	f.reader.set(14, false)
	require.NoError(t, f.monitor.OnTick(context.Background()))

	assert.Equal(t, scheduled, f.notifier.scheduleCount())
	assert.Equal(t, first.ID, f.monitor.State().ID)

	// A manual evaluation always reschedules.
	f.evaluate(t, types.TriggerManual)
	assert.Equal(t, scheduled+1, f.notifier.scheduleCount())
	assert.NotEqual(t, first.ID, f.monitor.State().ID)
	p, _ := f.notifier.get(reminder.Identifier)
	assert.Equal(t, "Low Battery 14%!", p.title)
}

func TestMonitorSettingsChange(t *testing.T) {
	f := startMonitor(t, 50, false)

	res, err := f.monitor.SetMinThreshold(context.Background(), 60)
	require.NoError(t, err)
	assert.Equal(t, types.TriggerSettings, res.Trigger)
	assert.Equal(t, reminder.Low, res.Decision)
	assert.Equal(t, 60, f.conf.MinThreshold())

	res, err = f.monitor.SetReminderFrequency(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Reminder.Frequency)
	p, ok := f.notifier.get(reminder.Identifier)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, p.interval)

	// persisted
	reloaded, err := config.NewFile(f.conf.Path())
	require.NoError(t, err)
	assert.Equal(t, 60, reloaded.MinThreshold())
	assert.Equal(t, 10, reloaded.ReminderFrequency())
}

func TestMonitorRejectsInvalidSettings(t *testing.T) {
	f := startMonitor(t, 50, false)

	_, err := f.monitor.SetMaxThreshold(context.Background(), 10)
	assert.ErrorIs(t, err, config.ErrInvalidThreshold)
	assert.Equal(t, 80, f.conf.MaxThreshold())

	_, err = f.monitor.SetMinThreshold(context.Background(), 0)
	assert.ErrorIs(t, err, config.ErrInvalidThreshold)
	assert.Equal(t, 20, f.conf.MinThreshold())

	_, err = f.monitor.SetReminderFrequency(context.Background(), 0)
	assert.ErrorIs(t, err, config.ErrInvalidFrequency)
	assert.Equal(t, 5, f.conf.ReminderFrequency())
}

func TestMonitorHardwareUnavailable(t *testing.T) {
	f := startMonitor(t, 15, false)
	f.evaluate(t, types.TriggerTick)
	require.True(t, f.monitor.State().Active)

	f.reader.fail(fmt.Errorf("%w: no battery", powerinfo.ErrHardwareUnavailable))
	res, err := f.monitor.Evaluate(context.Background(), types.TriggerTick)
	assert.ErrorIs(t, err, powerinfo.ErrHardwareUnavailable)
	assert.Equal(t, reminder.None, res.Decision)
	assert.NotEmpty(t, res.Error)

	_, ok := f.notifier.get(reminder.Identifier)
	assert.False(t, ok)
}

func TestMonitorPermissionDeniedKeepsRunning(t *testing.T) {
	f := startMonitor(t, 50, false)

	f.notifier.mu.Lock()
	f.notifier.scheduleErr = fmt.Errorf("%w: no notification server", notify.ErrPermissionDenied)
	f.notifier.mu.Unlock()

	f.reader.set(10, false)
	res, err := f.monitor.Evaluate(context.Background(), types.TriggerPower)
	assert.ErrorIs(t, err, notify.ErrPermissionDenied)
	assert.Equal(t, reminder.Low, res.Decision)
	assert.False(t, res.Reminder.Active)

	f.notifier.mu.Lock()
	f.notifier.scheduleErr = nil
	f.notifier.mu.Unlock()

	// The inactive state is not "unchanged", so the next tick retries.
	res = f.evaluate(t, types.TriggerTick)
	assert.True(t, res.Reminder.Active)
}

func TestMonitorShutdownCancelsReminders(t *testing.T) {
	f := startMonitor(t, 90, true)
	f.evaluate(t, types.TriggerTick)
	require.True(t, f.monitor.State().Active)

	f.stop(t)

	f.notifier.mu.Lock()
	assert.Equal(t, 1, f.notifier.cancelAlls)
	assert.Empty(t, f.notifier.active)
	f.notifier.mu.Unlock()
	assert.False(t, f.monitor.State().Active)

	_, err := f.monitor.Evaluate(context.Background(), types.TriggerManual)
	assert.True(t, errors.Is(err, ErrNotRunning))
}

func TestMonitorPublishesChanges(t *testing.T) {
	f := startMonitor(t, 50, false)
	f.evaluate(t, types.TriggerTick)

	ch := f.hub.Subscribe()
	defer f.hub.Unsubscribe(ch)

	f.reader.set(10, false)
	f.evaluate(t, types.TriggerPower)

	select {
	case ev := <-ch:
		assert.Equal(t, events.ReminderChanged, ev.Name)
		got, err := events.DecodeAs[events.ReminderChangedEvent](ev)
		require.NoError(t, err)
		assert.Equal(t, "none", got.From)
		assert.Equal(t, "low", got.To)
		assert.Equal(t, 10, got.Percent)
		assert.Equal(t, "power", got.Trigger)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestMonitorSerializesEvaluations(t *testing.T) {
	f := startMonitor(t, 15, false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				f.reader.set(15, i%4 == 0)
			}
			_, _ = f.monitor.Evaluate(context.Background(), types.TriggerManual)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, f.notifier.overlaps.Load())
	f.notifier.mu.Lock()
	assert.LessOrEqual(t, len(f.notifier.active), 1)
	f.notifier.mu.Unlock()
}
