package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindmorass/spiegel/internal/app"
	"github.com/mindmorass/spiegel/internal/backend"
	"github.com/mindmorass/spiegel/internal/clipboard"
	"github.com/mindmorass/spiegel/internal/events"
	"github.com/mindmorass/spiegel/internal/hotkey"
	"github.com/mindmorass/spiegel/internal/settings"
	"github.com/mindmorass/spiegel/internal/storage"
)

// setupTestConfig writes a config file whose data dir is a temp dir.
func setupTestConfig(t *testing.T) (string, *app.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := app.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Export.Location = filepath.Join(dir, "exports")

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, app.SaveConfig(cfg, path))
	return path, cfg
}

// seedRecords stores captures directly, oldest first.
func seedRecords(t *testing.T, cfg *app.Config, texts ...string) {
	t.Helper()
	store, err := storage.Open(cfg.DataDir, events.Discard)
	require.NoError(t, err)
	defer store.Close()

	for _, text := range texts {
		_, err := store.Create(context.Background(), storage.NewRecord{
			Capture:  clipboard.NewText(text),
			Category: "notes",
			Tags:     []string{"test"},
		})
		require.NoError(t, err)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newCLIApp(&out).Run(append([]string{"spiegel"}, args...))
	return out.String(), err
}

func TestList(t *testing.T) {
	path, cfg := setupTestConfig(t)
	seedRecords(t, cfg, "first", "second", "third")

	out, err := runCLI(t, "--config", path, "list", "--limit", "2")
	require.NoError(t, err)

	var views []recordView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	require.Equal(t, "third", views[0].Preview)
	require.Equal(t, "second", views[1].Preview)
	require.Equal(t, "text", views[0].Kind)
}

func TestList_PreviewIsShort(t *testing.T) {
	path, cfg := setupTestConfig(t)
	long := strings.Repeat("word ", 100)
	seedRecords(t, cfg, long)

	out, err := runCLI(t, "--config", path, "list")
	require.NoError(t, err)

	var views []recordView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	require.Equal(t, strings.Repeat("word ", 16)+"...", views[0].Preview)
}

func TestList_Category(t *testing.T) {
	path, cfg := setupTestConfig(t)
	seedRecords(t, cfg, "first")

	out, err := runCLI(t, "--config", path, "list", "--category", "code")
	require.NoError(t, err)

	var views []recordView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Empty(t, views)
}

func TestShowAndDelete(t *testing.T) {
	path, cfg := setupTestConfig(t)
	seedRecords(t, cfg, "hello world")

	out, err := runCLI(t, "--config", path, "show", "1")
	require.NoError(t, err)
	var v recordView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Equal(t, "hello world", v.Text)
	require.Equal(t, []string{"test"}, v.Tags)

	_, err = runCLI(t, "--config", path, "delete", "1")
	require.NoError(t, err)

	_, err = runCLI(t, "--config", path, "show", "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")

	_, err = runCLI(t, "--config", path, "delete", "1")
	require.Error(t, err)
}

func TestShow_InvalidID(t *testing.T) {
	path, _ := setupTestConfig(t)

	_, err := runCLI(t, "--config", path, "show", "abc")
	require.Error(t, err)

	_, err = runCLI(t, "--config", path, "show")
	require.Error(t, err)
}

func TestSettings(t *testing.T) {
	path, _ := setupTestConfig(t)

	out, err := runCLI(t, "--config", path, "settings", "list")
	require.NoError(t, err)
	var all map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Equal(t, settings.DefaultGlobalHotkey, all[settings.KeyGlobalHotkey])

	_, err = runCLI(t, "--config", path, "settings", "set", settings.KeyLLMModel, "gpt-4o-mini")
	require.NoError(t, err)

	out, err = runCLI(t, "--config", path, "settings", "get", settings.KeyLLMModel)
	require.NoError(t, err)
	require.Contains(t, out, "gpt-4o-mini")

	_, err = runCLI(t, "--config", path, "settings", "get", "missing")
	require.Error(t, err)
}

func TestSettings_RedactsAPIKey(t *testing.T) {
	path, _ := setupTestConfig(t)

	out, err := runCLI(t, "--config", path, "settings", "set", settings.KeyLLMAPIKey, "sk-secret")
	require.NoError(t, err)
	require.NotContains(t, out, "sk-secret")

	out, err = runCLI(t, "--config", path, "settings", "list")
	require.NoError(t, err)
	require.NotContains(t, out, "sk-secret")
}

func TestHotkey(t *testing.T) {
	path, _ := setupTestConfig(t)

	_, err := runCLI(t, "--config", path, "hotkey", "set", "Control+Banana")
	require.Error(t, err)

	out, err := runCLI(t, "--config", path, "hotkey", "get")
	require.NoError(t, err)
	require.Contains(t, out, settings.DefaultGlobalHotkey)

	_, err = runCLI(t, "--config", path, "settings", "set", settings.KeyGlobalHotkey, "Shift+Shift")
	require.Error(t, err)

	_, err = runCLI(t, "--config", path, "hotkey", "set", "ctrl+alt+k")
	require.NoError(t, err)

	out, err = runCLI(t, "--config", path, "hotkey", "get")
	require.NoError(t, err)
	require.Contains(t, out, "ctrl+alt+k")
}

func TestHotkeyCheck(t *testing.T) {
	out, err := runCLI(t, "hotkey", "check", "shift + ctrl + f5")
	require.NoError(t, err)

	want, err := hotkey.Parse("Control+Shift+F5")
	require.NoError(t, err)
	require.Contains(t, out, want.String())

	_, err = runCLI(t, "hotkey", "check", "Control+")
	require.Error(t, err)
}

func TestExport(t *testing.T) {
	path, cfg := setupTestConfig(t)
	seedRecords(t, cfg, "one", "two")

	dir := t.TempDir()
	out, err := runCLI(t, "--config", path, "export", "--dir", dir)
	require.NoError(t, err)

	var res struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	data, err := os.ReadFile(filepath.Join(dir, res.Name))
	require.NoError(t, err)
	recs, err := backend.DecodeRecords(data)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := runCLI(t, "--config", path, "config", "init")
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = runCLI(t, "--config", path, "config", "init")
	require.Error(t, err)

	_, err = runCLI(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, closer, err := newLogger("debug", dir)
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	require.Contains(t, string(data), "msg=hello")

	_, _, err = newLogger("loud", dir)
	require.Error(t, err)
}
