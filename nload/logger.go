package nload

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pkg/errors"

	"github.com/muir/ncompose"
)

// NewLogger builds the logger described by cfg.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", cfg.Level)
		}
		zc.Level = level
	}
	logger, err := zc.Build()
	return logger, errors.Wrap(err, "build logger")
}

// Reporter is the diagnostic sink of a run: every diagnostic is kept,
// counted and logged.
type Reporter struct {
	logger  *zap.Logger
	module  *Module
	metrics *Metrics
	diags   *ncompose.Diagnostics
}

var (
	_ ncompose.Reporter           = &Reporter{}
	_ ncompose.LocationClassifier = &Reporter{}
)

// NewReporter returns a Reporter.  The module, metrics and diagnostics
// may be nil.
func NewReporter(logger *zap.Logger, module *Module, metrics *Metrics, diags *ncompose.Diagnostics) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if diags == nil {
		diags = &ncompose.Diagnostics{}
	}
	return &Reporter{
		logger:  logger,
		module:  module,
		metrics: metrics,
		diags:   diags,
	}
}

func (r *Reporter) Diagnostics() *ncompose.Diagnostics { return r.diags }

func (r *Reporter) Report(d ncompose.Diagnostic) {
	r.diags.Report(d)
	r.metrics.diagnostic(d)
	fields := []zap.Field{
		zap.String("id", string(d.ID)),
		zap.String("title", d.ID.Title()),
		zap.Stringer("severity", d.Severity),
	}
	if loc := d.Location(); loc.IsValid() {
		fields = append(fields, zap.Stringer("location", loc))
	}
	if len(d.Locations) > 1 {
		others := make([]string, 0, len(d.Locations)-1)
		for _, l := range d.Locations[1:] {
			others = append(others, l.String())
		}
		fields = append(fields, zap.Strings("related", others))
	}
	if ce := r.logger.Check(severityLevel(d.Severity), d.Message); ce != nil {
		ce.Write(fields...)
	}
}

func (r *Reporter) ClassifyLocation(loc ncompose.Location) ncompose.LocationClass {
	return r.module.ClassifyLocation(loc)
}

func severityLevel(s ncompose.Severity) zapcore.Level {
	switch s {
	case ncompose.Error:
		return zapcore.ErrorLevel
	case ncompose.Warning:
		return zapcore.WarnLevel
	case ncompose.Info:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
