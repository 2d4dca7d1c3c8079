package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	values  map[string]string
	loadErr error
	putErr  error
	puts    int
}

func (m *memStore) LoadSettings(context.Context) (map[string]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) PutSetting(_ context.Context, key, value string) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func TestInitialize_SeedsDefaults(t *testing.T) {
	store := &memStore{}
	c := New(store, nil)
	c.Initialize(context.Background())

	v, ok := c.Get(KeyGlobalHotkey)
	require.True(t, ok)
	require.Equal(t, DefaultGlobalHotkey, v)
	require.Equal(t, DefaultGlobalHotkey, store.values[KeyGlobalHotkey])
}

func TestInitialize_KeepsPersisted(t *testing.T) {
	store := &memStore{values: map[string]string{
		KeyGlobalHotkey: "Alt+F9",
		KeyLLMAPIKey:    "sk-test",
	}}
	c := New(store, nil)
	c.Initialize(context.Background())

	require.Equal(t, "Alt+F9", c.GlobalHotkey())
	require.Zero(t, store.puts)
	require.Len(t, c.List(), 2)
}

func TestInitialize_LoadFailureUsesDefaults(t *testing.T) {
	store := &memStore{loadErr: errors.New("disk gone"), putErr: errors.New("disk gone")}
	c := New(store, nil)
	c.Initialize(context.Background())

	require.Equal(t, DefaultGlobalHotkey, c.GlobalHotkey())
}

func TestSet_FailureLeavesCacheUntouched(t *testing.T) {
	store := &memStore{}
	c := New(store, nil)
	c.Initialize(context.Background())

	var changes int
	c.Subscribe(func(string, string) { changes++ })

	store.putErr = errors.New("readonly database")
	err := c.Set(context.Background(), KeyGlobalHotkey, "Alt+F9")
	require.ErrorIs(t, err, ErrStoreFailure)
	require.Equal(t, DefaultGlobalHotkey, c.GlobalHotkey())
	require.Zero(t, changes)
}

func TestSet_WritesThroughAndNotifies(t *testing.T) {
	store := &memStore{}
	c := New(store, nil)
	c.Initialize(context.Background())

	var gotKey, gotValue string
	c.Subscribe(func(k, v string) { gotKey, gotValue = k, v })

	require.NoError(t, c.Set(context.Background(), KeyNotifications, "off"))
	require.Equal(t, "off", store.values[KeyNotifications])
	require.False(t, c.NotificationsEnabled())
	require.Equal(t, KeyNotifications, gotKey)
	require.Equal(t, "off", gotValue)
}

func TestList_IsSnapshot(t *testing.T) {
	c := New(&memStore{}, nil)
	c.Initialize(context.Background())

	snap := c.List()
	snap[KeyGlobalHotkey] = "mutated"

	require.Equal(t, DefaultGlobalHotkey, c.GlobalHotkey())
}

// gatedStore blocks PutSetting until release is closed
type gatedStore struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) LoadSettings(context.Context) (map[string]string, error) {
	return map[string]string{KeyGlobalHotkey: "Alt+F9"}, nil
}

func (g *gatedStore) PutSetting(context.Context, string, string) error {
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func TestGet_DoesNotWaitForStoreWrite(t *testing.T) {
	store := &gatedStore{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := New(store, nil)
	c.Initialize(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Set(context.Background(), KeyLLMModel, "gpt-4o-mini") }()
	<-store.entered

	got := make(chan string, 1)
	go func() {
		v, _ := c.Get(KeyGlobalHotkey)
		got <- v
	}()

	select {
	case v := <-got:
		require.Equal(t, "Alt+F9", v)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Get waited for an in-flight store write")
	}
	_, ok := c.Get(KeyLLMModel)
	require.False(t, ok, "value visible before it was persisted")

	close(store.release)
	require.NoError(t, <-done)
	v, _ := c.Get(KeyLLMModel)
	require.Equal(t, "gpt-4o-mini", v)
}

func TestReload_NotifiesExternalChanges(t *testing.T) {
	store := &memStore{values: map[string]string{KeyGlobalHotkey: "Alt+F9"}}
	c := New(store, nil)
	c.Initialize(context.Background())

	var changes []string
	c.Subscribe(func(key, value string) { changes = append(changes, key+"="+value) })

	require.NoError(t, c.Reload(context.Background()))
	require.Empty(t, changes)

	// another process writes the database
	store.values[KeyGlobalHotkey] = "Control+Alt+K"
	store.values[KeyLLMAPIKey] = "sk-new"

	require.NoError(t, c.Reload(context.Background()))
	require.ElementsMatch(t, []string{"global_hotkey=Control+Alt+K", "llm_api_key=sk-new"}, changes)
	require.Equal(t, "Control+Alt+K", c.GlobalHotkey())
	v, _ := c.Get(KeyLLMAPIKey)
	require.Equal(t, "sk-new", v)
}

func TestReload_StoreFailure(t *testing.T) {
	store := &memStore{}
	c := New(store, nil)
	c.Initialize(context.Background())

	store.loadErr = errors.New("locked")
	require.ErrorIs(t, c.Reload(context.Background()), ErrStoreFailure)
	require.Equal(t, DefaultGlobalHotkey, c.GlobalHotkey())
}
