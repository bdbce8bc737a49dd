package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/pcran/pcran/pkg/curve"
	"github.com/pcran/pcran/pkg/detect"
	"github.com/pcran/pcran/pkg/regression"
	"github.com/pcran/pcran/pkg/types"
	"github.com/pcran/pcran/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		Mode:             ptr.To(ModeAmplification),
		XName:            ptr.To("conc"),
		YName:            ptr.To("ct"),
		Detection:        ptr.To(detect.PolicyLinear),
		Threshold:        ptr.To(0.0),
		Method:           ptr.To(regression.MethodLSQ),
		NeedLogX:         ptr.To(true),
		NeedEff:          ptr.To(true),
		Workers:          ptr.To(0),
		Solver:           ptr.To(curve.SolverLM),
		MaxIterations:    ptr.To(curve.DefaultMaxIterations),
		InitialGuess:     ptr.To(curve.DefaultInitialGuess),
		OutputDir:        ptr.To("results"),
		CleanOutput:      ptr.To(true),
		CurveCompression: ptr.To("zstd"),
		Listen:           ptr.To("unix:///tmp/pcran.sock"),
		Schedule:         ptr.To(""),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Mode             *string              `json:"mode,omitempty" yaml:"mode,omitempty"`
	Filename         *string              `json:"filename,omitempty" yaml:"filename,omitempty"`
	Sheet            *string              `json:"sheet,omitempty" yaml:"sheet,omitempty"`
	Wells            []string             `json:"wells,omitempty" yaml:"wells,omitempty"`
	X                []float64            `json:"x,omitempty" yaml:"x,omitempty"`
	XName            *string              `json:"xName,omitempty" yaml:"xName,omitempty"`
	YName            *string              `json:"yName,omitempty" yaml:"yName,omitempty"`
	Detection        *string              `json:"detection,omitempty" yaml:"detection,omitempty"`
	Threshold        *float64             `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Method           *string              `json:"method,omitempty" yaml:"method,omitempty"`
	NeedLogX         *bool                `json:"needLogX,omitempty" yaml:"needLogX,omitempty"`
	NeedEff          *bool                `json:"needEff,omitempty" yaml:"needEff,omitempty"`
	Workers          *int                 `json:"workers,omitempty" yaml:"workers,omitempty"`
	Solver           *string              `json:"solver,omitempty" yaml:"solver,omitempty"`
	MaxIterations    *int                 `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
	InitialGuess     *types.FitParameters `json:"initialGuess,omitempty" yaml:"initialGuess,omitempty"`
	OutputDir        *string              `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	CleanOutput      *bool                `json:"cleanOutput,omitempty" yaml:"cleanOutput,omitempty"`
	CurveCompression *string              `json:"curveCompression,omitempty" yaml:"curveCompression,omitempty"`
	Listen           *string              `json:"listen,omitempty" yaml:"listen,omitempty"`
	Schedule         *string              `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// get returns the field selected by field, falling back to the default table.
func get[T any](f *File, field func(*RawFileConfig) *T) T {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if v := field(f.c); v != nil {
		return *v
	}
	return *field(defaultFileConfig)
}

func (f *File) Mode() string {
	return get(f, func(c *RawFileConfig) *string { return c.Mode })
}

func (f *File) Filename() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.Filename, "")
}

func (f *File) Sheet() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.c.Sheet, "")
}

func (f *File) Wells() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.c.Wells...)
}

func (f *File) X() []float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]float64(nil), f.c.X...)
}

func (f *File) XName() string {
	return get(f, func(c *RawFileConfig) *string { return c.XName })
}

func (f *File) YName() string {
	return get(f, func(c *RawFileConfig) *string { return c.YName })
}

func (f *File) Detection() string {
	return get(f, func(c *RawFileConfig) *string { return c.Detection })
}

func (f *File) Threshold() float64 {
	return get(f, func(c *RawFileConfig) *float64 { return c.Threshold })
}

func (f *File) Method() string {
	return get(f, func(c *RawFileConfig) *string { return c.Method })
}

func (f *File) NeedLogX() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.NeedLogX })
}

func (f *File) NeedEff() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.NeedEff })
}

func (f *File) Workers() int {
	return get(f, func(c *RawFileConfig) *int { return c.Workers })
}

func (f *File) Solver() string {
	return get(f, func(c *RawFileConfig) *string { return c.Solver })
}

func (f *File) MaxIterations() int {
	return get(f, func(c *RawFileConfig) *int { return c.MaxIterations })
}

func (f *File) InitialGuess() types.FitParameters {
	return get(f, func(c *RawFileConfig) *types.FitParameters { return c.InitialGuess })
}

func (f *File) OutputDir() string {
	return get(f, func(c *RawFileConfig) *string { return c.OutputDir })
}

func (f *File) CleanOutput() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.CleanOutput })
}

func (f *File) CurveCompression() string {
	return get(f, func(c *RawFileConfig) *string { return c.CurveCompression })
}

func (f *File) Listen() string {
	return get(f, func(c *RawFileConfig) *string { return c.Listen })
}

func (f *File) Schedule() string {
	return get(f, func(c *RawFileConfig) *string { return c.Schedule })
}

func (f *File) IndependentValues() (map[string]float64, error) {
	wells, xs := f.Wells(), f.X()
	if len(wells) != len(xs) {
		return nil, pkgerrors.Errorf("wells and x differ in length (%d != %d)", len(wells), len(xs))
	}

	m := make(map[string]float64, len(wells))
	for i, w := range wells {
		if _, ok := m[w]; ok {
			return nil, pkgerrors.Errorf("well %s listed twice", w)
		}
		m[w] = xs[i]
	}
	return m, nil
}

func (f *File) Merge(o *RawFileConfig) {
	if o == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	set(&f.c.Mode, o.Mode)
	set(&f.c.Filename, o.Filename)
	set(&f.c.Sheet, o.Sheet)
	if o.Wells != nil {
		f.c.Wells = append([]string(nil), o.Wells...)
	}
	if o.X != nil {
		f.c.X = append([]float64(nil), o.X...)
	}
	set(&f.c.XName, o.XName)
	set(&f.c.YName, o.YName)
	set(&f.c.Detection, o.Detection)
	set(&f.c.Threshold, o.Threshold)
	set(&f.c.Method, o.Method)
	set(&f.c.NeedLogX, o.NeedLogX)
	set(&f.c.NeedEff, o.NeedEff)
	set(&f.c.Workers, o.Workers)
	set(&f.c.Solver, o.Solver)
	set(&f.c.MaxIterations, o.MaxIterations)
	set(&f.c.InitialGuess, o.InitialGuess)
	set(&f.c.OutputDir, o.OutputDir)
	set(&f.c.CleanOutput, o.CleanOutput)
	set(&f.c.CurveCompression, o.CurveCompression)
	set(&f.c.Listen, o.Listen)
	set(&f.c.Schedule, o.Schedule)
}

func set[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func (f *File) isYAML() bool {
	switch strings.ToLower(filepath.Ext(f.filepath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if f.isYAML() {
		err = yaml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	if f.isYAML() {
		enc := yaml.NewEncoder(fp)
		enc.SetIndent(2)
		err = enc.Encode(f.c)
		if err == nil {
			err = enc.Close()
		}
	} else {
		enc := json.NewEncoder(fp)
		enc.SetIndent("", "  ")
		err = enc.Encode(f.c)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// Raw returns a deep copy of the explicitly set fields.
func (f *File) Raw() *RawFileConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := &RawFileConfig{}
	tmp := NewFileFromConfig(c, "")
	tmp.Merge(f.c)
	return c
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"mode":             f.Mode(),
		"filename":         f.Filename(),
		"wells":            len(f.Wells()),
		"detection":        f.Detection(),
		"threshold":        f.Threshold(),
		"method":           f.Method(),
		"needLogX":         f.NeedLogX(),
		"needEff":          f.NeedEff(),
		"yName":            f.YName(),
		"solver":           f.Solver(),
		"curveCompression": f.CurveCompression(),
		"schedule":         f.Schedule(),
	}
}
