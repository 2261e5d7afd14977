package nload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muir/ncompose"
)

var envNames = []string{
	"DIR", "PATTERNS", "TAGS", "MAX_VARIANTS", "CONTRACT_SEVERITY",
	"LOG_LEVEL", "LOG_DEVELOPMENT", "METRICS", "WATCH_DEBOUNCE",
}

// clearEnv unsets the overrides for the duration of the test.
func clearEnv(t *testing.T) {
	for _, n := range envNames {
		t.Setenv(EnvPrefix+n, "")
		require.NoError(t, os.Unsetenv(EnvPrefix+n))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, []string{"./..."}, cfg.Patterns)
	assert.Equal(t, []string{BuildTag}, cfg.Tags())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Nil(t, cfg.SeverityOfNotImplementedContract)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), `
dir: src
patterns: ["./app/..."]
buildTags: [extra, ncompose]
maxVariants: 16
severityOfNotImplementedContract: warning
log:
  level: debug
  development: true
metrics:
  enabled: true
watch:
  debounce: 2s
`)
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "src"), cfg.Dir)
	assert.Equal(t, []string{"./app/..."}, cfg.Patterns)
	assert.Equal(t, []string{"ncompose", "extra"}, cfg.Tags())
	assert.Equal(t, 16, cfg.MaxVariants)
	require.NotNil(t, cfg.SeverityOfNotImplementedContract)
	assert.Equal(t, ncompose.Warning, *cfg.SeverityOfNotImplementedContract)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "ncompose", cfg.Metrics.Namespace)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

func TestLoadConfigEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), "maxVariants: 16\n")
	t.Setenv("NCOMPOSE_MAX_VARIANTS", "3")
	t.Setenv("NCOMPOSE_PATTERNS", "./a/..., ./b")
	t.Setenv("NCOMPOSE_CONTRACT_SEVERITY", "info")
	t.Setenv("NCOMPOSE_WATCH_DEBOUNCE", "1s")
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxVariants, "environment beats the file")
	assert.Equal(t, []string{"./a/...", "./b"}, cfg.Patterns)
	require.NotNil(t, cfg.SeverityOfNotImplementedContract)
	assert.Equal(t, ncompose.Info, *cfg.SeverityOfNotImplementedContract)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestLoadConfigDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "NCOMPOSE_LOG_LEVEL=debug\n")
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{
			name: "negative variants",
			file: "maxVariants: -1\n",
			want: "invalid configuration",
		},
		{
			name: "unknown level",
			file: "log:\n  level: loud\n",
			want: "invalid configuration",
		},
		{
			name: "no patterns",
			file: "patterns: []\n",
			want: "invalid configuration",
		},
		{
			name: "bad yaml",
			file: "patterns: [\n",
			want: ConfigFileName,
		},
		{
			name: "bad number",
			env:  map[string]string{"NCOMPOSE_MAX_VARIANTS": "lots"},
			want: "NCOMPOSE_MAX_VARIANTS",
		},
		{
			name: "bad severity",
			env:  map[string]string{"NCOMPOSE_CONTRACT_SEVERITY": "fatal"},
			want: "NCOMPOSE_CONTRACT_SEVERITY",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			if tc.file != "" {
				writeFile(t, filepath.Join(dir, ConfigFileName), tc.file)
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
