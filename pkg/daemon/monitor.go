package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battrem/pkg/config"
	"github.com/charlie0129/battrem/pkg/events"
	"github.com/charlie0129/battrem/pkg/metrics"
	"github.com/charlie0129/battrem/pkg/notify"
	"github.com/charlie0129/battrem/pkg/powerinfo"
	"github.com/charlie0129/battrem/pkg/reminder"
	"github.com/charlie0129/battrem/pkg/types"
)

// DefaultTickInterval is the safety-net re-evaluation interval, in case
// power events are missed.
const DefaultTickInterval = 60 * time.Second

// ErrNotRunning is returned when an evaluation is requested from a monitor
// whose loop has exited.
var ErrNotRunning = errors.New("monitor is not running")

type evalResponse struct {
	result types.Evaluation
	err    error
}

type evalRequest struct {
	trigger types.Trigger
	done    chan evalResponse
}

// Monitor re-evaluates the battery on ticks, power events and settings
// changes. All evaluations run on the goroutine of Run, which is the only
// caller of the reminder Scheduler.
type Monitor struct {
	conf      config.Config
	reader    powerinfo.Reader
	scheduler *reminder.Scheduler
	hub       *events.EventHub

	tickInterval time.Duration
	recorder     *TimeSeriesRecorder

	requests chan evalRequest
	stopped  chan struct{}

	// settingsMu serialises validate-and-persist of settings updates.
	settingsMu sync.Mutex

	runMu   sync.Mutex
	started bool
}

// NewMonitor creates a monitor. hub may be nil; tickInterval <= 0 means
// DefaultTickInterval.
func NewMonitor(conf config.Config, reader powerinfo.Reader, scheduler *reminder.Scheduler, hub *events.EventHub, tickInterval time.Duration) *Monitor {
	if conf == nil || reader == nil || scheduler == nil {
		panic("monitor needs a config, a reader and a scheduler")
	}
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Monitor{
		conf:         conf,
		reader:       reader,
		scheduler:    scheduler,
		hub:          hub,
		tickInterval: tickInterval,
		recorder:     NewTimeSeriesRecorder(60, tickInterval),
		requests:     make(chan evalRequest),
		stopped:      make(chan struct{}),
	}
}

// Run evaluates once, then serves evaluation requests and safety-net ticks
// until ctx is done. Before returning it cancels every pending reminder.
func (m *Monitor) Run(ctx context.Context) error {
	m.runMu.Lock()
	if m.started {
		m.runMu.Unlock()
		return pkgerrors.New("monitor already started")
	}
	m.started = true
	m.runMu.Unlock()

	defer close(m.stopped)

	logrus.WithField("tickInterval", m.tickInterval.String()).Debug("monitor loop starts")

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	m.evaluateAndLog(types.TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			logrus.Info("monitor loop stopping, cancelling pending reminders")
			if err := m.scheduler.Shutdown(); err != nil {
				logrus.Errorf("failed to cancel reminders before exiting: %v", err)
				return err
			}
			metrics.ReminderActive.Set(0)
			return nil
		case <-ticker.C:
			// A stalled ticker usually means the system slept, which is
			// a power transition of its own.
			if checkMissedTicks(m.recorder, time.Now()) {
				m.evaluateAndLog(types.TriggerPower)
			} else {
				m.evaluateAndLog(types.TriggerTick)
			}
			m.recorder.AddRecordNow()
		case req := <-m.requests:
			res, err := m.evaluate(req.trigger)
			req.done <- evalResponse{result: res, err: err}
		}
	}
}

func (m *Monitor) evaluateAndLog(trigger types.Trigger) {
	if _, err := m.evaluate(trigger); err != nil {
		logrus.WithField("trigger", trigger).Debugf("evaluation finished with error: %v", err)
	}
}

// Evaluate asks the loop to run one evaluation and waits for its result.
func (m *Monitor) Evaluate(ctx context.Context, trigger types.Trigger) (types.Evaluation, error) {
	req := evalRequest{trigger: trigger, done: make(chan evalResponse, 1)}

	select {
	case m.requests <- req:
	case <-m.stopped:
		return types.Evaluation{}, ErrNotRunning
	case <-ctx.Done():
		return types.Evaluation{}, ctx.Err()
	}

	select {
	case resp := <-req.done:
		return resp.result, resp.err
	case <-ctx.Done():
		return types.Evaluation{}, ctx.Err()
	}
}

// OnTick re-evaluates as a periodic tick.
func (m *Monitor) OnTick(ctx context.Context) error {
	_, err := m.Evaluate(ctx, types.TriggerTick)
	return err
}

// OnPowerStateChanged re-evaluates after a power source or charging
// transition.
func (m *Monitor) OnPowerStateChanged(ctx context.Context) error {
	_, err := m.Evaluate(ctx, types.TriggerPower)
	return err
}

// State returns the current reminder.
func (m *Monitor) State() reminder.State {
	return m.scheduler.State()
}

func (m *Monitor) SetMinThreshold(ctx context.Context, v int) (types.Evaluation, error) {
	return m.updateSetting(ctx, "minThreshold", v, m.conf.SetMinThreshold)
}

func (m *Monitor) SetMaxThreshold(ctx context.Context, v int) (types.Evaluation, error) {
	return m.updateSetting(ctx, "maxThreshold", v, m.conf.SetMaxThreshold)
}

func (m *Monitor) SetReminderFrequency(ctx context.Context, v int) (types.Evaluation, error) {
	return m.updateSetting(ctx, "reminderFrequency", v, m.conf.SetReminderFrequency)
}

// updateSetting validates, persists and then re-evaluates. The returned
// error only covers the first two steps; evaluation problems are reported
// in the Evaluation.
func (m *Monitor) updateSetting(ctx context.Context, name string, v int, set func(int) error) (types.Evaluation, error) {
	m.settingsMu.Lock()
	if err := set(v); err != nil {
		m.settingsMu.Unlock()
		logrus.WithField(name, v).Warnf("rejected setting: %v", err)
		return types.Evaluation{}, err
	}
	if err := m.conf.Save(); err != nil {
		m.settingsMu.Unlock()
		logrus.Errorf("saveConfig failed: %v", err)
		return types.Evaluation{}, pkgerrors.Wrap(err, "failed to save config")
	}
	m.settingsMu.Unlock()

	logrus.WithField(name, v).Info("setting updated")

	res, err := m.Evaluate(ctx, types.TriggerSettings)
	if err != nil && res.Error == "" {
		res.Error = err.Error()
	}
	return res, nil
}

// ReloadConfig re-reads the settings store and re-evaluates. An invalid
// store is rejected and the previous settings stay in effect.
func (m *Monitor) ReloadConfig(ctx context.Context) error {
	m.settingsMu.Lock()
	err := m.conf.Load()
	m.settingsMu.Unlock()
	if err != nil {
		return err
	}

	_, err = m.Evaluate(ctx, types.TriggerSettings)
	return err
}

// evaluate runs read, evaluate, apply. It must only be called from Run.
func (m *Monitor) evaluate(trigger types.Trigger) (types.Evaluation, error) {
	metrics.Evaluations.WithLabelValues(string(trigger)).Inc()

	res := types.Evaluation{
		Trigger:    trigger,
		Thresholds: config.Thresholds(m.conf),
		Frequency:  m.conf.ReminderFrequency(),
		Decision:   reminder.None,
	}

	reading, readErr := m.reader.Read()
	res.Reading = reading
	if readErr != nil {
		// No decision is possible, so whatever was pending is cancelled.
		metrics.Errors.WithLabelValues("read").Inc()
		logrus.WithField("trigger", trigger).Warnf("failed to read battery: %v", readErr)
	} else {
		res.Decision = reminder.Evaluate(reading, res.Thresholds)
		metrics.BatteryPercent.Set(float64(reading.Percent))
		metrics.BatteryCharging.Set(metrics.BoolToFloat(reading.IsCharging))
	}
	metrics.Decisions.WithLabelValues(res.Decision.String()).Inc()

	prev := m.scheduler.State()

	var applyErr error
	if trigger != types.TriggerManual && m.scheduler.Unchanged(res.Decision, res.Frequency) {
		if readErr == nil {
			applyErr = m.scheduler.Refresh(reading)
		}
	} else {
		applyErr = m.scheduler.Apply(res.Decision, reading, res.Frequency)
		if applyErr == nil && res.Decision != reminder.None {
			metrics.RemindersScheduled.WithLabelValues(res.Decision.String()).Inc()
		}
	}
	if applyErr != nil {
		metrics.Errors.WithLabelValues("notify").Inc()
		if errors.Is(applyErr, notify.ErrPermissionDenied) {
			logrus.Warnf("reminder not delivered: %v", applyErr)
		} else {
			logrus.Errorf("failed to apply reminder decision: %v", applyErr)
		}
	}

	cur := m.scheduler.State()
	res.Reminder = cur
	metrics.ReminderActive.Set(metrics.BoolToFloat(cur.Active))

	fields := logrus.Fields{
		"trigger":      trigger,
		"percent":      reading.Percent,
		"isCharging":   reading.IsCharging,
		"minThreshold": res.Thresholds.MinPercent,
		"maxThreshold": res.Thresholds.MaxPercent,
		"frequency":    res.Frequency,
		"decision":     res.Decision,
		"active":       cur.Active,
	}
	if prev.Kind != cur.Kind || prev.Active != cur.Active {
		logrus.WithFields(fields).Infof("battery reminder changed from %s to %s", prev.Kind, cur.Kind)
		m.hub.Publish(events.ReminderChanged, events.ReminderChangedEvent{
			From:       prev.Kind.String(),
			To:         cur.Kind.String(),
			Active:     cur.Active,
			Percent:    reading.Percent,
			IsCharging: reading.IsCharging,
			Trigger:    string(trigger),
			Ts:         time.Now().Unix(),
		})
	} else {
		logrus.WithFields(fields).Trace("evaluation status")
	}

	err := errors.Join(readErr, applyErr)
	if err != nil {
		res.Error = err.Error()
	}
	return res, err
}
