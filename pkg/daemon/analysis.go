package daemon

import (
	"context"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/events"
	"github.com/pcran/pcran/pkg/ingest"
	"github.com/pcran/pcran/pkg/pipeline"
	"github.com/pcran/pcran/pkg/types"
)

// withOverrides returns a detached copy of base with o applied on top.
func withOverrides(base *config.File, o *config.RawFileConfig) *config.File {
	f := config.NewFileFromConfig(base.Raw(), "")
	f.Merge(o)
	return f
}

func (d *Daemon) reporter() pipeline.Reporter {
	return pipeline.Reporters{
		&pipeline.LogReporter{Logger: logrus.StandardLogger()},
		events.Reporter{Hub: d.hub},
	}
}

// checkInput makes sure the configured input file can be read.
func (d *Daemon) checkInput() error {
	name := d.conf.Filename()
	if name == "" {
		return pkgerrors.New("no input file configured")
	}
	if _, err := os.Stat(name); err != nil {
		return pkgerrors.Wrapf(err, "input %s is not readable", name)
	}
	return nil
}

// runConfigured analyses the input named by the configuration. Runs are
// serialised; a run over input identical to a cached one returns the cached
// result.
func (d *Daemon) runConfigured(ctx context.Context) (*types.Result, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	c := withOverrides(d.conf, nil)
	if err := config.Validate(c); err != nil {
		return nil, err
	}
	opts, err := pipeline.OptionsFromConfig(c)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(opts, d.reporter())
	if err != nil {
		return nil, err
	}

	var (
		fingerprint string
		run         func() (*types.Result, error)
	)
	switch c.Mode() {
	case config.ModeLinearFit:
		points, err := ingest.ReadPointsFile(c.Filename())
		if err != nil {
			return nil, err
		}
		fingerprint = pipeline.DatasetFingerprint(p.Options(), points)
		run = func() (*types.Result, error) { return p.RegressDataset(ctx, points) }
	default:
		tbl, err := ingest.ReadTable(c.Filename(), c.Sheet())
		if err != nil {
			return nil, err
		}
		fingerprint = pipeline.Fingerprint(p.Options(), tbl.Samples)
		run = func() (*types.Result, error) { return p.Run(ctx, tbl.Samples) }
	}

	if res, ok := d.cache.Get(fingerprint); ok {
		logrus.WithField("fingerprint", fingerprint).Info("input unchanged, reusing previous result")
		d.cache.Touch(res)
		return res, nil
	}

	res, err := run()
	if err != nil {
		return nil, err
	}
	d.cache.Put(res)
	return res, nil
}

// applySchedule starts, reschedules or stops the scheduler to match the
// configuration.
func (d *Daemon) applySchedule() error {
	d.schedMu.Lock()
	defer d.schedMu.Unlock()

	expr := d.conf.Schedule()
	if expr == "" {
		if d.scheduler != nil {
			d.scheduler.Stop()
			d.scheduler = nil
			logrus.Info("scheduled analysis disabled")
		}
		return nil
	}

	if d.scheduler == nil {
		d.scheduler = NewScheduler(
			func() error {
				_, err := d.runConfigured(context.Background())
				return err
			},
			d.checkInput,
			func(data any) {
				logrus.WithField("at", data).Info("scheduled analysis upcoming")
			},
			func(data any) {
				logrus.Errorf("scheduled analysis: %v", data)
			},
		)
	}
	if err := d.scheduler.Schedule(expr); err != nil {
		return pkgerrors.Wrapf(err, "invalid schedule %q", expr)
	}
	d.scheduler.Start()

	next, _ := d.scheduler.Status()
	logrus.WithFields(logrus.Fields{"schedule": expr, "next": next}).Info("scheduled analysis enabled")
	return nil
}

func (d *Daemon) stopSchedule() {
	d.schedMu.Lock()
	defer d.schedMu.Unlock()
	if d.scheduler != nil {
		d.scheduler.Stop()
		d.scheduler = nil
	}
}
