// Copyright 2026 The Depscan Authors
// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Empty(t, cfg.OutputDirectory)
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	content := `
output_directory: outputs/
max_depth: 3
osv_concurrency: 20
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "outputs/", cfg.OutputDirectory)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 20, cfg.OSVConcurrency)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{{invalid yaml"), 0o600))

	cfg, err := Load(dir)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(""), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Empty(t, cfg.OutputDirectory)
}

func TestLoad_PermissionError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("output_directory: outputs/"), 0o600))

	require.NoError(t, os.Chmod(path, 0o000))
	t.Cleanup(func() {
		_ = os.Chmod(path, 0o600)
	})

	cfg, err := Load(dir)
	assert.Error(t, err, "should fail when file is unreadable")
	assert.Nil(t, cfg)
}

func TestWrite(t *testing.T) {
	cfg := &Config{
		OutputDirectory: "outputs/",
		MaxDepth:        4,
		CacheTTL:        12 * time.Hour,
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cfg))

	out := buf.String()
	assert.Contains(t, out, "output_directory: outputs/")
	assert.Contains(t, out, "max_depth: 4")
}

func TestWrite_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cfg))
	assert.Contains(t, buf.String(), "{}")
}
