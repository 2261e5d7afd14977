package nload

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muir/ncompose"
)

func newTestRunner(t *testing.T, files map[string]string) (*Runner, *observer.ObservedLogs) {
	dir := writeProject(t, files)
	core, logs := observer.New(zapcore.DebugLevel)
	return &Runner{
		Config:  testConfig(dir),
		Logger:  zap.New(core),
		Metrics: NewMetrics("test"),
		Hooks:   NewHooks(),
		Load:    parseLoader,
	}, logs
}

func TestRun(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"types.go":  sensorTypes,
		"config.go": sensorConfig,
	})
	var ready []string
	finished := 0
	r.Hooks.On(GraphReady, func(ctx context.Context, ev Event) error {
		ready = append(ready, ev.Graph.Setup.Name)
		return nil
	})
	r.Hooks.On(RunFinished, func(ctx context.Context, ev Event) error {
		finished++
		assert.Len(t, ev.Result.Graphs, 1)
		return nil
	})

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Reused)
	assert.False(t, result.Diagnostics.HasErrors(), result.Diagnostics.String())
	require.Len(t, result.Setups, 1)
	require.Len(t, result.Graphs, 1)
	root, ok := result.Graphs[0].Root("Sensor")
	require.True(t, ok)
	assert.Equal(t, "*app.SensorService", root.Type.String())
	assert.Equal(t, []string{"Composition"}, ready)
	assert.Equal(t, 1, finished)
	require.NotNil(t, r.Module)
	assert.Equal(t, testModule, r.Module.Path)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.Metrics.Runs.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Metrics.SetupsProcessed))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Metrics.GraphsResolved))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.Metrics.CacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Metrics.CacheMisses))
}

func TestRunReusesUniverse(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"types.go":  sensorTypes,
		"config.go": sensorConfig,
	})
	first, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Reused)

	second, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Reused)
	require.Len(t, second.Graphs, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Metrics.CacheHits), "unchanged configuration comes from the cache")
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Metrics.CacheMisses))

	writeFile(t, filepath.Join(r.Config.Dir, "more.go"), "package app\n\ntype Extra struct{}\n")
	third, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Reused, "changed declarations rebuild the universe")
	require.Len(t, third.Graphs, 1)
	assert.Equal(t, float64(2), testutil.ToFloat64(r.Metrics.CacheMisses))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.Metrics.Runs.WithLabelValues("ok")))
}

func TestRunLogsDiagnostics(t *testing.T) {
	r, logs := newTestRunner(t, map[string]string{
		"types.go": sensorTypes + "\ntype Clock struct{}\n",
		"config.go": `//go:build ncompose

package app

import "github.com/muir/ncompose/di"

func setup() {
	di.Setup("Composition").
		Bind[ISensor]().To[*TemperatureSensor]().
		Bind[*Clock]().To[*Clock]().
		Bind[ISensorService]().To[*SensorService]().
		Root[ISensorService]("Sensor")
}
`,
	})
	result, err := r.Run(context.Background())
	require.NoError(t, err, result.Diagnostics.String())
	unused := result.Diagnostics.ByID(ncompose.UnusedBinding)
	require.Len(t, unused, 1, result.Diagnostics.String())
	assert.Contains(t, unused[0].Message, "*app.Clock")

	entries := logs.FilterField(zap.String("id", string(ncompose.UnusedBinding))).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, unused[0].Message, entries[0].Message)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.Metrics.Diagnostics.WithLabelValues(string(ncompose.UnusedBinding), "Warning")))
}

func TestRunFailure(t *testing.T) {
	r, logs := newTestRunner(t, map[string]string{
		"types.go": sensorTypes + "\ntype IMissing interface{ Missing() }\n",
		"config.go": `//go:build ncompose

package app

import "github.com/muir/ncompose/di"

func setup() {
	di.Setup("Composition").Root[IMissing]("Missing")
}
`,
	})
	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ncompose.ErrHandled))
	require.NotNil(t, result)
	assert.Empty(t, result.Graphs)
	assert.True(t, result.Diagnostics.HasErrors())
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Metrics.Runs.WithLabelValues("failed")))
	assert.NotEmpty(t, logs.FilterLevelExact(zapcore.ErrorLevel).All())
}

func TestRunHookFailure(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"types.go":  sensorTypes,
		"config.go": sensorConfig,
	})
	var failed []string
	r.Hooks.On(GraphReady, func(ctx context.Context, ev Event) error {
		return errors.New("emitter broke")
	})
	r.Hooks.On(RunFailed, func(ctx context.Context, ev Event) error {
		failed = append(failed, ev.Graph.Setup.Name)
		return nil
	})
	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emitter broke")
	assert.NotNil(t, result)
	assert.Equal(t, []string{"Composition"}, failed)
}

func TestRunCanceled(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"types.go":  sensorTypes,
		"config.go": sensorConfig,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := r.Run(ctx)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunLoadError(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{})
	r.Load = func(context.Context, *Config) ([]*Package, error) {
		return nil, errors.New("no packages")
	}
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Metrics.Runs.WithLabelValues("failed")))
}

func TestNewRunner(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Metrics.Enabled = true
	r, err := NewRunner(cfg)
	require.NoError(t, err)
	assert.NotNil(t, r.Logger)
	assert.NotNil(t, r.Metrics)
	assert.NotNil(t, r.Hooks)

	cfg.Log.Level = "loud"
	_, err = NewRunner(cfg)
	assert.Error(t, err)
}
