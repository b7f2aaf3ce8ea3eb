package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/cellgrid/common"
	"github.com/Carmen-Shannon/cellgrid/engine/renderer/shader/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeShader(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRendererOptionsDefaults(t *testing.T) {
	cfg := NewConfig()
	g, err := cfg.GridSize()
	require.NoError(t, err)

	opts, patterns, err := rendererOptions(cfg, g, common.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, opts, 5)
	assert.Len(t, patterns, 2)
}

func TestRendererOptionsLoadsShaderFiles(t *testing.T) {
	cfg := NewConfig()
	cfg.Render.Shader = writeShader(t, "cell.wgsl", source.Cell)
	cfg.Render.Simulate = true
	cfg.Render.SimulationShader = writeShader(t, "life.wgsl", source.Life)
	g, err := cfg.GridSize()
	require.NoError(t, err)

	opts, _, err := rendererOptions(cfg, g, common.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, opts, 7)
}

func TestRendererOptionsShaderFileErrors(t *testing.T) {
	g, err := NewConfig().GridSize()
	require.NoError(t, err)

	t.Run("missing file", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Render.Shader = filepath.Join(t.TempDir(), "missing.wgsl")
		_, _, err := rendererOptions(cfg, g, common.NewNopLogger())
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("no vertex entry point", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Render.Shader = writeShader(t, "life.wgsl", source.Life)
		_, _, err := rendererOptions(cfg, g, common.NewNopLogger())
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrShaderCompile))
	})

	t.Run("no compute entry point", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Render.Simulate = true
		cfg.Render.SimulationShader = writeShader(t, "cell.wgsl", source.Cell)
		_, _, err := rendererOptions(cfg, g, common.NewNopLogger())
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrShaderCompile))
	})
}
