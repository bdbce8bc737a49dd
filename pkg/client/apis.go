package client

import (
	"context"
	"encoding/json"

	pkgerrors "github.com/pkg/errors"

	"github.com/pcran/pcran/pkg/api"
	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/types"
)

func (c *Client) GetVersion(ctx context.Context) (string, error) {
	ret, err := c.Get(ctx, "/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}

	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal version")
	}
	return v, nil
}

func (c *Client) GetConfig(ctx context.Context) (*config.RawFileConfig, error) {
	ret, err := c.Get(ctx, "/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

// Analyze runs the pipeline on samples in the daemon. opts overrides the
// daemon's configuration for this run only.
func (c *Client) Analyze(ctx context.Context, samples map[string]types.Sample, opts *config.RawFileConfig) (*types.Result, error) {
	return c.postResult(ctx, "/analyze", api.AnalyzeRequest{Samples: samples, Options: opts})
}

// Regress fits a calibration line to a ready dataset in the daemon.
func (c *Client) Regress(ctx context.Context, points []types.CalibrationPoint, opts *config.RawFileConfig) (*types.Result, error) {
	return c.postResult(ctx, "/regress", api.RegressRequest{Points: points, Options: opts})
}

// RunNow runs the daemon's configured analysis immediately.
func (c *Client) RunNow(ctx context.Context) (*types.Result, error) {
	return c.postResult(ctx, "/run", nil)
}

// GetLast returns the result of the daemon's most recent configured run.
func (c *Client) GetLast(ctx context.Context) (*types.Result, error) {
	ret, err := c.Get(ctx, "/last")
	if err != nil {
		return nil, err
	}
	return decodeResult(ret)
}

func (c *Client) GetSchedule(ctx context.Context) (*api.ScheduleStatus, error) {
	ret, err := c.Get(ctx, "/schedule")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get schedule")
	}
	return decodeSchedule(ret)
}

// SkipSchedule skips the next scheduled run and returns the new status.
func (c *Client) SkipSchedule(ctx context.Context) (*api.ScheduleStatus, error) {
	ret, err := c.Post(ctx, "/schedule/skip", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to skip scheduled run")
	}
	return decodeSchedule(ret)
}

func (c *Client) postResult(ctx context.Context, path string, body any) (*types.Result, error) {
	data := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to marshal request")
		}
		data = string(b)
	}

	ret, err := c.Post(ctx, path, data)
	if err != nil {
		return nil, err
	}
	return decodeResult(ret)
}

func decodeResult(ret string) (*types.Result, error) {
	var res types.Result
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal result")
	}
	return &res, nil
}

func decodeSchedule(ret string) (*api.ScheduleStatus, error) {
	var s api.ScheduleStatus
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal schedule")
	}
	return &s, nil
}
