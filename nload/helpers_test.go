package nload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testModule = "example.com/app"

const sensorTypes = `package app

type ISensor interface{ Value() float64 }

type ISensorService interface{ Sensors() []ISensor }

type TemperatureSensor struct{}

func (*TemperatureSensor) Value() float64 { return 21 }

type WindSensor struct{}

func (*WindSensor) Value() float64 { return 3 }

type SensorService struct{ sensors []ISensor }

func NewSensorService(sensors []ISensor) *SensorService { return &SensorService{sensors: sensors} }

func (s *SensorService) Sensors() []ISensor { return s.sensors }
`

const sensorConfig = `//go:build ncompose

package app

import "github.com/muir/ncompose/di"

func setup() {
	di.Setup("Composition").
		Bind[ISensor]().To[*TemperatureSensor]().
		Bind[ISensor]("External").To[*WindSensor]().
		Bind[ISensorService]().As(di.Singleton).To[*SensorService]().
		Root[ISensorService]("Sensor")
}
`

// writeProject writes a module with the given files and returns its
// directory.
func writeProject(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	if _, ok := files["go.mod"]; !ok {
		files["go.mod"] = "module " + testModule + "\n\ngo 1.21\n"
	}
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
	}
	return dir
}

func writeFile(t *testing.T, name, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}

// parseLoader loads the one package in the configured directory without
// the go command.
func parseLoader(ctx context.Context, cfg *Config) ([]*Package, error) {
	p, err := ParseDir(cfg.Dir, testModule)
	if err != nil {
		return nil, err
	}
	return []*Package{p}, nil
}

func testConfig(dir string) *Config {
	cfg := DefaultConfig()
	cfg.Dir = dir
	return cfg
}
