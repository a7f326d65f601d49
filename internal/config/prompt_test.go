package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
)

func TestAskProjectDirAcceptsDirectory(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	got, err := NewProjectPrompt(strings.NewReader(dir+"\n"), &out, 3).AskProjectDir()
	require.NoError(t, err)

	assert.Equal(t, dir, got)
	assert.Equal(t, "Project directory: ", out.String())
}

func TestAskProjectDirRepromptsOnInvalidInput(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Cargo.toml")
	require.NoError(t, os.WriteFile(file, []byte("[package]"), 0644))

	input := strings.Join([]string{filepath.Join(dir, "missing"), file, dir}, "\n") + "\n"
	var out bytes.Buffer

	got, err := NewProjectPrompt(strings.NewReader(input), &out, 3).AskProjectDir()
	require.NoError(t, err)

	assert.Equal(t, dir, got)
	assert.Equal(t, 3, strings.Count(out.String(), "Project directory: "))
	assert.Contains(t, out.String(), "does not exist")
	assert.Contains(t, out.String(), "not a directory")
}

func TestAskProjectDirGivesUp(t *testing.T) {
	input := "/does/not/exist\n\n/also/missing\n" + t.TempDir() + "\n"
	var out bytes.Buffer

	_, err := NewProjectPrompt(strings.NewReader(input), &out, 3).AskProjectDir()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "after 3 attempts")
	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.ErrCodeInvalidPath, ae.Code)
}

func TestAskProjectDirEOF(t *testing.T) {
	_, err := NewProjectPrompt(strings.NewReader(""), &bytes.Buffer{}, 3).AskProjectDir()
	assert.ErrorContains(t, err, "no project directory given")
}

func TestAskProjectDirWithoutTrailingNewline(t *testing.T) {
	dir := t.TempDir()

	got, err := NewProjectPrompt(strings.NewReader(dir), &bytes.Buffer{}, 1).AskProjectDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveProjectDirHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.Mkdir(filepath.Join(home, "game"), 0755))

	got, err := ResolveProjectDir("~/game")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "game"), got)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)

	cfg := Defaults()
	cfg.Server.Port = 4040
	require.NoError(t, WriteFile(path, cfg, false))
	assert.ErrorContains(t, WriteFile(path, cfg, false), "already exists")
	require.NoError(t, WriteFile(path, cfg, true))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	loaded, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 4040, loaded.Server.Port)
	assert.Equal(t, cfg.Watch.Interval, loaded.Watch.Interval)
	assert.Equal(t, cfg.Watch.Exclude, loaded.Watch.Exclude)
}
