package nload

import (
	"context"
	"go/parser"
	"go/token"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConfigFile(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		src  string
		want bool
	}{
		{
			name: "tag",
			src:  "//go:build ncompose\n\npackage app\n",
			want: true,
		},
		{
			name: "either tag",
			src:  "//go:build ncompose || generate\n\npackage app\n",
			want: true,
		},
		{
			name: "negated",
			src:  "//go:build !ncompose\n\npackage app\n",
		},
		{
			name: "other tag",
			src:  "//go:build integration\n\npackage app\n",
		},
		{
			name: "no constraint",
			src:  "// Package app does things.\npackage app\n",
		},
		{
			name: "after the package clause",
			src:  "package app\n\n//go:build ncompose\nvar x int\n",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f, err := parser.ParseFile(token.NewFileSet(), "f.go", tc.src, parser.ParseComments)
			require.NoError(t, err)
			assert.Equal(t, tc.want, IsConfigFile(f))
		})
	}
}

func TestParseDir(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"types.go":     sensorTypes,
		"config.go":    sensorConfig,
		"types_gen.go": "// Code generated by hand. DO NOT EDIT.\n\npackage app\n",
		"app_test.go":  "package app\n",
		"README.md":    "not go",
	})
	p, err := ParseDir(dir, testModule)
	require.NoError(t, err)
	assert.Equal(t, "app", p.Name)
	assert.Equal(t, testModule, p.Path)
	require.Len(t, p.Files, 3)

	config := p.ConfigFiles()
	require.Len(t, config, 1)
	assert.Equal(t, "config.go", filepath.Base(config[0].Name))
	assert.Equal(t, sensorConfig, string(config[0].Src))

	types := p.TypeFiles()
	require.Len(t, types, 2)
	for _, f := range types {
		assert.Equal(t, filepath.Base(f.Name) == "types_gen.go", f.Generated, f.Name)
	}
}

func TestLoadPackages(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go command")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("no go command")
	}
	dir := writeProject(t, map[string]string{
		"types.go":  "package app\n\ntype Service struct{}\n",
		"config.go": "//go:build ncompose\n\npackage app\n\nvar configured = true\n",
		"other.go":  "//go:build !ncompose\n\npackage app\n\nvar configured = false\n",
	})
	cfg := testConfig(dir)
	pkgs, err := LoadPackages(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	p := pkgs[0]
	assert.Equal(t, testModule, p.Path)
	assert.Empty(t, p.Errors)
	require.Len(t, p.Files, 2, "files excluded by the tag are not loaded")
	require.Len(t, p.ConfigFiles(), 1)
	assert.Equal(t, "config.go", filepath.Base(p.ConfigFiles()[0].Name))
	assert.Contains(t, string(p.ConfigFiles()[0].Src), "configured = true")
	assert.NotNil(t, p.Info)
	assert.NotEmpty(t, p.Dir)
}
