package settings_test

import (
	"context"
	"testing"

	"github.com/mindmorass/spiegel/internal/settings"
	"github.com/mindmorass/spiegel/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestCache_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := storage.Open(dir, nil)
	require.NoError(t, err)

	c := settings.New(store, nil)
	c.Initialize(ctx)
	require.NoError(t, c.Set(ctx, settings.KeyGlobalHotkey, "Alt+F9"))
	require.NoError(t, c.Set(ctx, settings.KeyLLMAPIKey, "sk-test"))
	require.NoError(t, store.Close())

	store, err = storage.Open(dir, nil)
	require.NoError(t, err)
	defer store.Close()

	c = settings.New(store, nil)
	c.Initialize(ctx)
	require.Equal(t, "Alt+F9", c.GlobalHotkey())

	key, ok := c.Get(settings.KeyLLMAPIKey)
	require.True(t, ok)
	require.Equal(t, "sk-test", key)
}
