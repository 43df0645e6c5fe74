package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battrem/pkg/config"
	"github.com/charlie0129/battrem/pkg/events"
	"github.com/charlie0129/battrem/pkg/notify"
	"github.com/charlie0129/battrem/pkg/powerinfo"
	"github.com/charlie0129/battrem/pkg/reminder"
)

const (
	NotifierDBus = "dbus"
	NotifierLog  = "log"
)

// Options configures Run.
type Options struct {
	ConfigPath     string
	UnixSocketPath string
	AllowNonRoot   bool
	// Notifier is NotifierDBus or NotifierLog.
	Notifier string
	// TickInterval is the safety-net re-evaluation interval.
	TickInterval time.Duration
	// PollInterval is used when UPower is not reachable.
	PollInterval time.Duration
}

func newDeliverer(name string) (notify.Deliverer, error) {
	switch name {
	case "", NotifierDBus:
		return notify.NewDBusDeliverer("battrem"), nil
	case NotifierLog:
		return notify.LogDeliverer{}, nil
	default:
		return nil, errors.New("unknown notifier " + name)
	}
}

// Run starts the monitor and its HTTP API and blocks until SIGINT or
// SIGTERM. Pending reminders are cancelled before it returns.
func Run(opts Options) error {
	conf, err := config.NewFile(opts.ConfigPath)
	if err != nil {
		logrus.Errorf("failed to parse config during startup, using defaults: %v", err)
		conf = config.NewFileFromConfig(nil, opts.ConfigPath)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	deliverer, err := newDeliverer(opts.Notifier)
	if err != nil {
		return err
	}
	center := notify.NewCenter(deliverer)
	if err := center.Authorize(); err != nil {
		// Not fatal. Authorization is asked again when a reminder is due.
		logrus.Warnf("notifications are not available yet: %v", err)
	}

	reader := powerinfo.NewBatteryReader()
	hub := events.NewEventHub()
	monitor := NewMonitor(conf, reader, reminder.NewScheduler(center), hub, opts.TickInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var monitorWg sync.WaitGroup
	monitorWg.Add(1)
	go func() {
		defer monitorWg.Done()
		if err := monitor.Run(ctx); err != nil {
			logrus.Errorf("monitor loop exited with error: %v", err)
		}
	}()

	onPowerChange := func() {
		if err := monitor.OnPowerStateChanged(ctx); err != nil && ctx.Err() == nil {
			logrus.Debugf("power state evaluation: %v", err)
		}
	}

	go watchPower(ctx, reader, opts.PollInterval, onPowerChange)

	go func() {
		sl := &sleepListener{onWake: onPowerChange}
		if err := sl.listen(ctx); err != nil {
			logrus.Warnf("failed to listen to system sleep notifications: %v", err)
		}
	}()

	reload := func() {
		if err := monitor.ReloadConfig(ctx); err != nil {
			if ctx.Err() == nil {
				logrus.Errorf("failed to reload config: %v", err)
			}
			return
		}
		logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
	}

	go func() {
		if err := config.Watch(ctx, conf.Path(), reload); err != nil {
			logrus.Warnf("config file will not be reloaded automatically: %v", err)
		}
	}()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		defer signal.Stop(sigc)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigc:
				reload()
			}
		}
	}()

	s := &server{
		monitor: monitor,
		conf:    conf,
		reader:  reader,
		hub:     hub,
	}
	srv := &http.Server{
		Handler: s.setupRoutes(),
	}

	// A socket left behind by a crashed daemon would make Listen fail.
	if err := os.Remove(opts.UnixSocketPath); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to remove stale socket %s: %v", opts.UnixSocketPath, err)
	}

	l, err := net.Listen("unix", opts.UnixSocketPath)
	if err != nil {
		cancel()
		monitorWg.Wait()
		return err
	}

	if conf.AllowNonRootAccess() || opts.AllowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", opts.UnixSocketPath)
		if err := os.Chmod(opts.UnixSocketPath, 0777); err != nil {
			logrus.Errorf("failed to change socket permissions: %v", err)
		}
	}

	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("http server failed: %v", err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	logrus.Info("stopping monitor")
	cancel()
	monitorWg.Wait()

	_ = os.Remove(opts.UnixSocketPath)

	logrus.Info("exiting")
	return nil
}

// watchPower prefers UPower signals and falls back to polling when the
// system bus or UPower is not available.
func watchPower(ctx context.Context, reader powerinfo.Reader, pollInterval time.Duration, onChange func()) {
	var w powerinfo.Watcher = &powerinfo.UPowerWatcher{}
	err := w.Watch(ctx, onChange)
	if err == nil || ctx.Err() != nil {
		return
	}
	logrus.Warnf("UPower is not available, polling the battery instead: %v", err)

	w = &powerinfo.PollWatcher{Reader: reader, Interval: pollInterval}
	if err := w.Watch(ctx, onChange); err != nil {
		logrus.Errorf("power state watcher exited: %v", err)
	}
}
