package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battrem/pkg/config"
	"github.com/charlie0129/battrem/pkg/powerinfo"
	"github.com/charlie0129/battrem/pkg/reminder"
	"github.com/charlie0129/battrem/pkg/types"
)

func (c *Client) SetMinThreshold(v int) (*types.Evaluation, error) {
	return c.putSetting("/min-threshold", v)
}

func (c *Client) SetMaxThreshold(v int) (*types.Evaluation, error) {
	return c.putSetting("/max-threshold", v)
}

func (c *Client) SetReminderFrequency(minutes int) (*types.Evaluation, error) {
	return c.putSetting("/reminder-frequency", minutes)
}

func (c *Client) putSetting(path string, v int) (*types.Evaluation, error) {
	ret, err := c.Put(path, strconv.Itoa(v))
	if err != nil {
		return nil, err
	}
	return unmarshalEvaluation(ret)
}

// Evaluate forces the daemon to re-evaluate and reschedule the reminder.
func (c *Client) Evaluate() (*types.Evaluation, error) {
	ret, err := c.Post("/evaluate", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to evaluate")
	}
	return unmarshalEvaluation(ret)
}

func unmarshalEvaluation(ret string) (*types.Evaluation, error) {
	var res types.Evaluation
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal evaluation")
	}
	return &res, nil
}

func (c *Client) GetReading() (*powerinfo.Reading, error) {
	ret, err := c.Get("/reading")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get battery reading")
	}

	var r powerinfo.Reading
	if err := json.Unmarshal([]byte(ret), &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal battery reading")
	}
	return &r, nil
}

func (c *Client) GetReminder() (*reminder.State, error) {
	ret, err := c.Get("/reminder")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get reminder")
	}

	var st reminder.State
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal reminder")
	}
	return &st, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return unquote(ret), nil
}
