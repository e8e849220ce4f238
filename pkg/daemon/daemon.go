// Package daemon assembles the hardware drivers, the motion
// controller, the scheduler and the HTTP API into the long-running
// blindd process.
package daemon

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/button"
	"github.com/blindd/blindd/pkg/config"
	"github.com/blindd/blindd/pkg/controller"
	"github.com/blindd/blindd/pkg/events"
	"github.com/blindd/blindd/pkg/hw/adc"
	"github.com/blindd/blindd/pkg/hw/debounce"
	"github.com/blindd/blindd/pkg/hw/gpio"
	"github.com/blindd/blindd/pkg/hw/motor"
	"github.com/blindd/blindd/pkg/sensor"
	"github.com/blindd/blindd/pkg/store"
)

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	g, err := gpio.NewDriver(conf.MockGPIO())
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open GPIO driver")
	}
	defer func() {
		if err := g.Close(); err != nil {
			logrus.Errorf("failed to close GPIO driver: %v", err)
		}
	}()

	stepper, err := motor.NewStepper(g, motor.StepperConfig{
		Pins:         conf.MotorPins(),
		DefaultSpeed: conf.DefaultSpeed(),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to set up stepper motor")
	}

	var sampler adc.Sampler
	if conf.MockGPIO() {
		// No SPI bus without real hardware; a fixed midrange reading
		// keeps the rest of the daemon exercisable.
		sampler = adc.NewFake(2000)
	} else {
		mcp, err := adc.NewMCP3208(g, adc.MCP3208Config{
			Channel:       conf.ADCChannel(),
			PowerPin:      conf.SensorPowerPin(),
			Stabilization: conf.SensorStabilization(),
		})
		if err != nil {
			return pkgerrors.Wrap(err, "failed to set up ADC")
		}
		defer mcp.Close()
		sampler = mcp
	}

	st, err := store.Open(conf.StorePath(), sensor.Namespace)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open calibration store")
	}

	hub := events.NewHub()
	reader := sensor.New(sampler, st, conf.ZebraEnabled())
	ctrl := controller.New(stepper, reader,
		controller.WithEventHub(hub),
		controller.WithZebraSupport(conf.ZebraEnabled()),
		controller.WithDefaultSpeed(conf.DefaultSpeed()))

	poller, err := debounce.NewPoller(g, debounce.PollerConfig{
		UpPin:             conf.ButtonUpPin(),
		DownPin:           conf.ButtonDownPin(),
		LongPress:         conf.LongPress(),
		DoubleClickWindow: conf.DoubleClickWindow(),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to set up button poller")
	}

	coord, err := button.New(poller)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to set up button coordinator")
	}
	coord.SetCallback(ctrl.HandleButton)

	sched := NewScheduler(
		ctrl.SetPositionPercentage,
		func() error {
			if ctrl.State() == controller.Calibrating {
				return controller.ErrCalibrating
			}
			return nil
		},
		func(data any) {
			up, _ := data.(Upcoming)
			hub.Publish(events.ScheduleUpcoming, events.ScheduleEvent{
				Message: up.RunAt.Format(time.RFC3339),
				Ts:      time.Now().Unix(),
			})
		},
		func(data any) {
			err, _ := data.(error)
			hub.Publish(events.ScheduleError, events.ScheduleEvent{
				Message: err.Error(),
				Ts:      time.Now().Unix(),
			})
		})
	if err := sched.SetSchedules(conf.Schedules()); err != nil {
		return pkgerrors.Wrap(err, "invalid schedule in config")
	}

	d := &Daemon{
		conf:   conf,
		hub:    hub,
		ctrl:   ctrl,
		sensor: reader,
		sched:  sched,
	}
	router := d.setupRoutes()

	// Receive SIGHUP to reload config. Pin assignments need a restart;
	// the reload picks up schedules and access settings.
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := conf.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := sched.SetSchedules(conf.Schedules()); err != nil {
				logrus.Errorf("failed to apply reloaded schedules: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// A leftover socket from an unclean shutdown blocks the listener.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(err, "failed to remove stale socket %s", unixSocketPath)
	}

	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", unixSocketPath)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		if err := os.Chmod(unixSocketPath, 0777); err != nil {
			return pkgerrors.Wrap(err, "failed to chmod socket")
		}
	}

	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !pkgerrors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	poller.Start()
	coord.Start()
	sched.Start()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping scheduler and button handling")
	sched.Stop()
	coord.Stop()
	poller.Stop()

	logrus.Info("stopping motor")
	ctrl.Stop()

	logrus.Info("exiting")
	return nil
}
