// Package client is the typed API for talking to a running blindd
// daemon over its unix socket.
package client

import (
	"encoding/json"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	internalclient "github.com/blindd/blindd/internal/client"
	"github.com/blindd/blindd/pkg/config"
	"github.com/blindd/blindd/pkg/types"
)

// Errors re-exported from the transport so callers can match on them.
var (
	ErrDaemonNotRunning = internalclient.ErrDaemonNotRunning
	ErrPermissionDenied = internalclient.ErrPermissionDenied
	ErrNotFound         = internalclient.ErrNotFound
)

type Client struct {
	c *internalclient.Client
}

func New(socketPath string) *Client {
	return &Client{c: internalclient.NewClient(socketPath)}
}

func (c *Client) GetStatus() (types.Status, error) {
	var st types.Status
	ret, err := c.c.Get("/status")
	if err != nil {
		return st, pkgerrors.Wrap(err, "failed to get status")
	}
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return st, pkgerrors.Wrap(err, "failed to unmarshal status")
	}
	return st, nil
}

func (c *Client) GetPosition() (types.Position, error) {
	var p types.Position
	ret, err := c.c.Get("/position")
	if err != nil {
		return p, pkgerrors.Wrap(err, "failed to get position")
	}
	if err := json.Unmarshal([]byte(ret), &p); err != nil {
		return p, pkgerrors.Wrap(err, "failed to unmarshal position")
	}
	return p, nil
}

// SetPosition moves the covering to a percentage of its travel, 0 for
// fully up and 100 for fully down.
func (c *Client) SetPosition(percent float64) (string, error) {
	return c.c.Put("/position", strconv.FormatFloat(percent, 'f', -1, 64))
}

func (c *Client) MoveUp() (string, error) {
	return c.c.Post("/up", "")
}

func (c *Client) MoveDown() (string, error) {
	return c.c.Post("/down", "")
}

func (c *Client) Stop() (string, error) {
	return c.c.Post("/stop", "")
}

func (c *Client) GotoTop() (string, error) {
	return c.c.Post("/top", "")
}

func (c *Client) GotoBottom() (string, error) {
	return c.c.Post("/bottom", "")
}

func (c *Client) GetCalibration() (types.Calibration, error) {
	var cal types.Calibration
	ret, err := c.c.Get("/calibration")
	if err != nil {
		return cal, pkgerrors.Wrap(err, "failed to get calibration")
	}
	if err := json.Unmarshal([]byte(ret), &cal); err != nil {
		return cal, pkgerrors.Wrap(err, "failed to unmarshal calibration")
	}
	return cal, nil
}

func (c *Client) StartCalibration() (types.Calibration, error) {
	var cal types.Calibration
	ret, err := c.c.Post("/calibration/start", "")
	if err != nil {
		return cal, pkgerrors.Wrap(err, "failed to start calibration")
	}
	if err := json.Unmarshal([]byte(ret), &cal); err != nil {
		return cal, pkgerrors.Wrap(err, "failed to unmarshal calibration")
	}
	return cal, nil
}

func (c *Client) StepCalibration() (types.Calibration, error) {
	var cal types.Calibration
	ret, err := c.c.Post("/calibration/step", "")
	if err != nil {
		return cal, pkgerrors.Wrap(err, "failed to advance calibration")
	}
	if err := json.Unmarshal([]byte(ret), &cal); err != nil {
		return cal, pkgerrors.Wrap(err, "failed to unmarshal calibration")
	}
	return cal, nil
}

func (c *Client) CancelCalibration() (string, error) {
	return c.c.Post("/calibration/cancel", "")
}

func (c *Client) GetConfig() (types.ConfigSummary, error) {
	var cs types.ConfigSummary
	ret, err := c.c.Get("/config")
	if err != nil {
		return cs, pkgerrors.Wrap(err, "failed to get config")
	}
	if err := json.Unmarshal([]byte(ret), &cs); err != nil {
		return cs, pkgerrors.Wrap(err, "failed to unmarshal config")
	}
	return cs, nil
}

func (c *Client) GetSchedules() ([]config.Schedule, error) {
	ret, err := c.c.Get("/schedule")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get schedules")
	}
	var schedules []config.Schedule
	if err := json.Unmarshal([]byte(ret), &schedules); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal schedules")
	}
	return schedules, nil
}

func (c *Client) SetSchedules(schedules []config.Schedule) (string, error) {
	payload, err := json.Marshal(schedules)
	if err != nil {
		return "", err
	}
	return c.c.Put("/schedule", string(payload))
}

func (c *Client) ClearSchedules() (string, error) {
	return c.c.Delete("/schedule")
}

// SkipSchedule drops the next scheduled move.
func (c *Client) SkipSchedule() (string, error) {
	return c.c.Post("/schedule/skip", "")
}

// PostponeSchedule delays the next scheduled move by the given
// duration.
func (c *Client) PostponeSchedule(d time.Duration) (string, error) {
	payload, err := json.Marshal(d.String())
	if err != nil {
		return "", err
	}
	return c.c.Post("/schedule/postpone", string(payload))
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to get daemon version")
	}
	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrap(err, "failed to unmarshal version")
	}
	return v, nil
}
