package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pcran/pcran/pkg/client"
	"github.com/pcran/pcran/pkg/compress"
	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/ingest"
	"github.com/pcran/pcran/pkg/pipeline"
	"github.com/pcran/pcran/pkg/report"
	"github.com/pcran/pcran/pkg/types"
)

// analysisFlags are the config fields every analysis command can override.
type analysisFlags struct {
	input       string
	sheet       string
	detection   string
	threshold   float64
	method      string
	yName       string
	noLogX      bool
	noEff       bool
	workers     int
	solver      string
	outputDir   string
	compression string
}

func (a *analysisFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&a.input, "input", "i", "", "input file (overrides config filename)")
	f.StringVar(&a.sheet, "sheet", "", "sheet of an .xlsx input")
	f.StringVar(&a.detection, "detection", "", "signal detection policy (linear, threshold)")
	f.Float64Var(&a.threshold, "threshold", 0, "fluorescence threshold of the threshold policy")
	f.StringVar(&a.method, "method", "", "regression method (lsq, hi2)")
	f.StringVar(&a.yName, "y", "", "dependent axis (ct, drfu)")
	f.BoolVar(&a.noLogX, "no-log-x", false, "regress against x instead of log10(x)")
	f.BoolVar(&a.noEff, "no-eff", false, "do not compute the PCR efficiency")
	f.IntVarP(&a.workers, "workers", "j", 0, "wells fitted concurrently (0 means one per CPU)")
	f.StringVar(&a.solver, "solver", "", "curve fit solver (lm, bfgs, nelder-mead)")
	f.StringVarP(&a.outputDir, "output", "o", "", "output directory")
	f.StringVar(&a.compression, "compression", "", "curve archive compression (none, zstd, lz4, s2)")
}

// overrides returns the fields whose flags were set on the command line.
func (a *analysisFlags) overrides(cmd *cobra.Command) *config.RawFileConfig {
	f := cmd.Flags()
	o := &config.RawFileConfig{}
	if f.Changed("input") {
		o.Filename = &a.input
	}
	if f.Changed("sheet") {
		o.Sheet = &a.sheet
	}
	if f.Changed("detection") {
		o.Detection = &a.detection
	}
	if f.Changed("threshold") {
		o.Threshold = &a.threshold
	}
	if f.Changed("method") {
		o.Method = &a.method
	}
	if f.Changed("y") {
		o.YName = &a.yName
	}
	if f.Changed("no-log-x") {
		v := !a.noLogX
		o.NeedLogX = &v
	}
	if f.Changed("no-eff") {
		v := !a.noEff
		o.NeedEff = &v
	}
	if f.Changed("workers") {
		o.Workers = &a.workers
	}
	if f.Changed("solver") {
		o.Solver = &a.solver
	}
	if f.Changed("output") {
		o.OutputDir = &a.outputDir
	}
	if f.Changed("compression") {
		o.CurveCompression = &a.compression
	}
	return o
}

func loadConfig(overrides *config.RawFileConfig) (*config.File, error) {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return nil, err
	}
	conf.Merge(overrides)
	logrus.WithFields(conf.LogrusFields()).Debug("config loaded")
	return conf, nil
}

func newClient(conf config.Config) (*client.Client, error) {
	listen := listenAddr
	if listen == "" {
		listen = conf.Listen()
	}
	return client.NewClient(listen)
}

func newPipeline(conf config.Config) (*pipeline.Pipeline, error) {
	opts, err := pipeline.OptionsFromConfig(conf)
	if err != nil {
		return nil, err
	}
	return pipeline.New(opts, &pipeline.LogReporter{Logger: logrus.StandardLogger()})
}

// analyzeConfigured runs the analysis the configuration describes.
func analyzeConfigured(ctx context.Context, conf config.Config) (*types.Result, error) {
	if err := config.Validate(conf); err != nil {
		return nil, err
	}
	if conf.Filename() == "" {
		return nil, fmt.Errorf("no input file: set filename in %s or pass --input", configPath)
	}
	p, err := newPipeline(conf)
	if err != nil {
		return nil, err
	}

	if conf.Mode() == config.ModeLinearFit {
		points, err := ingest.ReadPointsFile(conf.Filename())
		if err != nil {
			return nil, err
		}
		return p.RegressDataset(ctx, points)
	}

	tbl, err := ingest.ReadTable(conf.Filename(), conf.Sheet())
	if err != nil {
		return nil, err
	}
	if tbl.Skipped > 0 {
		logrus.Warnf("skipped %d rows without signal", tbl.Skipped)
	}
	return p.Run(ctx, tbl.Samples)
}

// writeOutputs writes the result files into the configured output directory.
func writeOutputs(conf config.Config, res *types.Result) error {
	codec, err := compress.ByName(conf.CurveCompression())
	if err != nil {
		return err
	}
	if err := report.PrepareDir(conf.OutputDir(), conf.CleanOutput()); err != nil {
		return err
	}
	files, err := report.WriteAll(conf.OutputDir(), res, conf.XName(), codec)
	if err != nil {
		return err
	}
	for _, f := range files {
		logrus.Infof("wrote %s", f)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
