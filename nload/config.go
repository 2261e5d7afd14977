package nload

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/muir/ncompose"
)

const (
	// ConfigFileName is looked for in the directory given to LoadConfig.
	ConfigFileName = "ncompose.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "NCOMPOSE_"
	// BuildTag marks files holding configuration.
	BuildTag = "ncompose"
)

// Config controls a Runner.  Values come, in increasing priority, from
// DefaultConfig, ncompose.yaml, a .env file and NCOMPOSE_* environment
// variables.
type Config struct {
	// Dir is the directory packages are loaded from.
	Dir string `yaml:"dir" validate:"required"`
	// Patterns are package patterns as understood by go list.
	Patterns []string `yaml:"patterns" validate:"min=1,dive,required"`
	// BuildTags are added to BuildTag when loading packages.
	BuildTags []string `yaml:"buildTags" validate:"dive,required"`
	// MaxVariants overrides the MaxVariants hint when positive.
	MaxVariants int `yaml:"maxVariants" validate:"gte=0"`
	// SeverityOfNotImplementedContract applies to setups that do not
	// set the hint themselves.
	SeverityOfNotImplementedContract *ncompose.Severity `yaml:"severityOfNotImplementedContract"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Watch   WatchConfig   `yaml:"watch"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// DefaultConfig is the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Dir:      ".",
		Patterns: []string{"./..."},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "ncompose",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
	}
}

// LoadConfig reads the configuration for the project in dir.  Missing
// files are not an error.  Relative directories in the result are
// relative to dir.
func LoadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Dir = dir

	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "load .env")
	}

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read %s", path)
	}

	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Dir) {
		cfg.Dir = filepath.Join(dir, cfg.Dir)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (cfg *Config) Validate() error {
	return errors.Wrap(validate.Struct(cfg), "invalid configuration")
}

// applyEnvironment overlays NCOMPOSE_* variables.
func (cfg *Config) applyEnvironment() error {
	var problems []string
	lookup := func(name string, set func(string) error) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		if err := set(v); err != nil {
			problems = append(problems, EnvPrefix+name+": "+err.Error())
		}
	}
	lookup("DIR", func(v string) error {
		cfg.Dir = v
		return nil
	})
	lookup("PATTERNS", func(v string) error {
		cfg.Patterns = splitList(v)
		return nil
	})
	lookup("TAGS", func(v string) error {
		cfg.BuildTags = splitList(v)
		return nil
	})
	lookup("MAX_VARIANTS", func(v string) error {
		n, err := strconv.Atoi(v)
		cfg.MaxVariants = n
		return err
	})
	lookup("CONTRACT_SEVERITY", func(v string) error {
		var s ncompose.Severity
		if err := s.UnmarshalText([]byte(v)); err != nil {
			return err
		}
		cfg.SeverityOfNotImplementedContract = &s
		return nil
	})
	lookup("LOG_LEVEL", func(v string) error {
		cfg.Log.Level = strings.ToLower(v)
		return nil
	})
	lookup("LOG_DEVELOPMENT", func(v string) error {
		b, err := strconv.ParseBool(v)
		cfg.Log.Development = b
		return err
	})
	lookup("METRICS", func(v string) error {
		b, err := strconv.ParseBool(v)
		cfg.Metrics.Enabled = b
		return err
	})
	lookup("WATCH_DEBOUNCE", func(v string) error {
		d, err := time.ParseDuration(v)
		cfg.Watch.Debounce = d
		return err
	})
	if len(problems) > 0 {
		return errors.Errorf("environment: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Tags are the build tags used to load packages.
func (cfg *Config) Tags() []string {
	tags := []string{BuildTag}
	for _, t := range cfg.BuildTags {
		if t != BuildTag {
			tags = append(tags, t)
		}
	}
	return tags
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
