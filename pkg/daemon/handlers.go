package daemon

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blindd/blindd/pkg/config"
	"github.com/blindd/blindd/pkg/controller"
	"github.com/blindd/blindd/pkg/events"
	"github.com/blindd/blindd/pkg/sensor"
	"github.com/blindd/blindd/pkg/types"
	"github.com/blindd/blindd/pkg/version"
)

// Daemon wires the controller, sensor, scheduler and configuration
// behind the HTTP API. Handlers are methods so tests can stand up a
// Daemon around fakes.
type Daemon struct {
	conf   config.Config
	hub    *events.Hub
	ctrl   *controller.Controller
	sensor *sensor.Reader
	sched  *Scheduler
}

func (d *Daemon) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))

	router.GET("/status", d.getStatus)
	router.GET("/position", d.getPosition)
	router.PUT("/position", d.setPosition)
	router.POST("/up", d.moveUp)
	router.POST("/down", d.moveDown)
	router.POST("/stop", d.stop)
	router.POST("/top", d.gotoTop)
	router.POST("/bottom", d.gotoBottom)
	router.GET("/calibration", d.getCalibration)
	router.POST("/calibration/start", d.startCalibration)
	router.POST("/calibration/step", d.stepCalibration)
	router.POST("/calibration/cancel", d.cancelCalibration)
	router.GET("/config", d.getConfig)
	router.GET("/schedule", d.getSchedules)
	router.PUT("/schedule", d.setSchedules)
	router.DELETE("/schedule", d.deleteSchedules)
	router.POST("/schedule/skip", d.skipSchedule)
	router.POST("/schedule/postpone", d.postponeSchedule)
	router.GET("/version", d.getVersion)
	router.GET("/events", d.streamEvents)

	return router
}

// statusOf maps controller errors onto HTTP status codes. State
// conflicts (uncalibrated, mid-calibration) are the client's problem,
// not the daemon's.
func statusOf(err error) int {
	switch {
	case pkgerrors.Is(err, controller.ErrNotCalibrated),
		pkgerrors.Is(err, controller.ErrCalibrating),
		pkgerrors.Is(err, controller.ErrNotCalibrating):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	code := statusOf(err)
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

func (d *Daemon) getStatus(c *gin.Context) {
	pos := d.sensor.Read()
	st := types.Status{
		State:         d.ctrl.State().String(),
		Position:      pos,
		Percent:       d.sensor.Percentage(),
		Calibrated:    d.sensor.IsCalibrated(),
		Moving:        d.ctrl.IsMoving(),
		AutoCalibrate: d.ctrl.AutoCalibrate(),
		ZebraEnabled:  d.conf.ZebraEnabled(),
		Version:       version.Version,
	}
	if runAt, percent, ok := d.sched.NextRun(); ok {
		st.NextRun = runAt.Format(time.RFC3339)
		st.NextPercent = percent
	}
	c.IndentedJSON(http.StatusOK, st)
}

func (d *Daemon) getPosition(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, types.Position{
		Raw:        d.sensor.Read(),
		Percent:    d.sensor.Percentage(),
		Calibrated: d.sensor.IsCalibrated(),
	})
}

func (d *Daemon) setPosition(c *gin.Context) {
	var pct float64
	if err := c.BindJSON(&pct); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if pct < 0 || pct > 100 {
		err := pkgerrors.Errorf("position must be between 0 and 100, got %.1f", pct)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.ctrl.SetPositionPercentage(pct); err != nil {
		abortWith(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) moveUp(c *gin.Context) {
	if err := d.ctrl.MoveUp(); err != nil {
		abortWith(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "moving up")
}

func (d *Daemon) moveDown(c *gin.Context) {
	if err := d.ctrl.MoveDown(); err != nil {
		abortWith(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "moving down")
}

func (d *Daemon) stop(c *gin.Context) {
	d.ctrl.Stop()
	c.IndentedJSON(http.StatusCreated, "stopped")
}

func (d *Daemon) gotoTop(c *gin.Context) {
	if err := d.ctrl.GotoTop(); err != nil {
		abortWith(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "moving to top")
}

func (d *Daemon) gotoBottom(c *gin.Context) {
	if err := d.ctrl.GotoBottom(); err != nil {
		abortWith(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "moving to bottom")
}

func (d *Daemon) getCalibration(c *gin.Context) {
	cal := types.Calibration{
		Active:      d.ctrl.State() == controller.Calibrating,
		Calibrated:  d.sensor.IsCalibrated(),
		MinPosition: d.sensor.MinPosition(),
		MaxPosition: d.sensor.MaxPosition(),
		ZebraOffset: d.sensor.ZebraOffset(),
	}
	if cal.Active {
		step := d.sensor.Step()
		cal.Step = step.String()
		cal.Prompt = sensor.StepPrompt(step)
	}
	c.IndentedJSON(http.StatusOK, cal)
}

func (d *Daemon) startCalibration(c *gin.Context) {
	d.ctrl.Calibrate()
	step := d.sensor.Step()
	c.IndentedJSON(http.StatusCreated, types.Calibration{
		Active: true,
		Step:   step.String(),
		Prompt: sensor.StepPrompt(step),
	})
}

func (d *Daemon) stepCalibration(c *gin.Context) {
	if err := d.ctrl.CalibrationStep(); err != nil {
		abortWith(c, err)
		return
	}

	step := d.sensor.Step()
	c.IndentedJSON(http.StatusCreated, types.Calibration{
		Active:      step != sensor.StepComplete,
		Step:        step.String(),
		Prompt:      sensor.StepPrompt(step),
		Calibrated:  d.sensor.IsCalibrated(),
		MinPosition: d.sensor.MinPosition(),
		MaxPosition: d.sensor.MaxPosition(),
		ZebraOffset: d.sensor.ZebraOffset(),
	})
}

func (d *Daemon) cancelCalibration(c *gin.Context) {
	if err := d.ctrl.CancelCalibration(); err != nil {
		abortWith(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "calibration cancelled")
}

func (d *Daemon) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, types.ConfigSummary{
		MockGPIO:       d.conf.MockGPIO(),
		MotorPins:      d.conf.MotorPins(),
		DefaultSpeed:   d.conf.DefaultSpeed(),
		ButtonUpPin:    d.conf.ButtonUpPin(),
		ButtonDownPin:  d.conf.ButtonDownPin(),
		LongPressMs:    d.conf.LongPress().Milliseconds(),
		DoubleClickMs:  d.conf.DoubleClickWindow().Milliseconds(),
		SensorPowerPin: d.conf.SensorPowerPin(),
		ADCChannel:     d.conf.ADCChannel(),
		StorePath:      d.conf.StorePath(),
		ZebraEnabled:   d.conf.ZebraEnabled(),
		ScheduleCount:  len(d.conf.Schedules()),
	})
}

func (d *Daemon) getSchedules(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.conf.Schedules())
}

func (d *Daemon) setSchedules(c *gin.Context) {
	var schedules []config.Schedule
	if err := c.BindJSON(&schedules); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	for _, s := range schedules {
		if s.Percent < 0 || s.Percent > 100 {
			err := pkgerrors.Errorf("schedule percent must be 0-100, got %.1f", s.Percent)
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
	}

	if err := d.sched.SetSchedules(schedules); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	d.conf.SetSchedules(schedules)
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set %d schedules", len(schedules))
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) deleteSchedules(c *gin.Context) {
	if err := d.sched.SetSchedules(nil); err != nil {
		abortWith(c, err)
		return
	}
	d.conf.SetSchedules(nil)
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, "schedules cleared")
}

// scheduleErrStatus maps scheduler control errors: a missing pending
// run is a state conflict, everything else is bad input.
func scheduleErrStatus(err error) int {
	if pkgerrors.Is(err, ErrNoScheduledMove) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func (d *Daemon) skipSchedule(c *gin.Context) {
	if err := d.sched.Skip(); err != nil {
		code := scheduleErrStatus(err)
		c.IndentedJSON(code, err.Error())
		_ = c.AbortWithError(code, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "next scheduled move skipped")
}

func (d *Daemon) postponeSchedule(c *gin.Context) {
	var raw string
	if err := c.BindJSON(&raw); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.sched.Postpone(dur); err != nil {
		code := scheduleErrStatus(err)
		c.IndentedJSON(code, err.Error())
		_ = c.AbortWithError(code, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "next scheduled move postponed by "+dur.String())
}

func (d *Daemon) getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

// streamEvents serves the hub as server-sent events until the client
// disconnects.
func (d *Daemon) streamEvents(c *gin.Context) {
	ch := d.hub.Subscribe()
	defer d.hub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-keepalive.C:
			c.SSEvent("keepalive", "{}")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
