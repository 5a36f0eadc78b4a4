package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/C-BJ/val/internal/source"
)

func TestParseDefaults(t *testing.T) {
	opts, err := Parse([]byte("{}"))
	require.NoError(t, err)
	require.False(t, opts.IsBuiltinModuleVisible)
	require.Nil(t, opts.TracingInferenceIn)
}

func TestParseFull(t *testing.T) {
	opts, err := Parse([]byte("builtin-module-visible: true\ntrace-inference: main.val:42\n"))
	require.NoError(t, err)
	require.True(t, opts.IsBuiltinModuleVisible)
	require.NotNil(t, opts.TracingInferenceIn)
	require.Equal(t, "main.val", opts.TracingInferenceIn.File)
	require.Equal(t, 42, opts.TracingInferenceIn.Number)
}

func TestParseRejectsBadLine(t *testing.T) {
	_, err := Parse([]byte("trace-inference: nonsense\n"))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "val.yaml")
	require.NoError(t, os.WriteFile(path, []byte("builtin-module-visible: true\n"), 0o644))
	opts, err := Load(path)
	require.NoError(t, err)
	require.True(t, opts.IsBuiltinModuleVisible)
}

func TestShouldTrace(t *testing.T) {
	line := source.Line{File: "a.val", Number: 3}
	opts := Options{TracingInferenceIn: &line}
	require.True(t, opts.ShouldTrace(source.Site{File: "a.val", Line: 3, Column: 9}))
	require.False(t, opts.ShouldTrace(source.Site{File: "a.val", Line: 4}))
	require.False(t, Options{}.ShouldTrace(source.Site{File: "a.val", Line: 3}))
}
