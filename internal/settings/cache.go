// Package settings holds the runtime key/value settings in memory and writes
// them through to a backing store.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Known keys
const (
	KeyGlobalHotkey  = "global_hotkey"
	KeyLLMAPIKey     = "llm_api_key"
	KeyLLMModel      = "llm_model"
	KeyNotifications = "notifications"
)

// DefaultGlobalHotkey is bound when nothing is configured
const DefaultGlobalHotkey = "CommandOrControl+Shift+S"

// ErrStoreFailure wraps errors from the backing store
var ErrStoreFailure = errors.New("settings store failure")

// Store is the persistent side of the cache
type Store interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// ChangeFunc is called after a setting was written
type ChangeFunc func(key, value string)

var defaults = map[string]string{
	KeyGlobalHotkey: DefaultGlobalHotkey,
}

// Cache is the in-memory view of all settings. Reads never touch the store.
type Cache struct {
	store  Store
	logger *slog.Logger

	// writeMu serializes writers across the store round trip; mu only
	// guards values so readers never wait on I/O
	writeMu sync.Mutex
	mu      sync.RWMutex
	values  map[string]string

	subMu     sync.Mutex
	listeners []ChangeFunc
}

// New creates an empty cache; call Initialize to load it
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:  store,
		logger: logger,
		values: make(map[string]string),
	}
}

// Initialize loads persisted settings and seeds missing defaults. It does not
// fail: an unreadable store is treated as empty.
func (c *Cache) Initialize(ctx context.Context) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	loaded, err := c.store.LoadSettings(ctx)
	if err != nil {
		c.logger.Error("failed to load settings, using defaults", "error", err)
		loaded = nil
	}

	values := make(map[string]string, len(loaded)+len(defaults))
	for k, v := range loaded {
		values[k] = v
	}
	for k, v := range defaults {
		if _, ok := values[k]; ok {
			continue
		}
		if err := c.store.PutSetting(ctx, k, v); err != nil {
			c.logger.Error("failed to persist default setting", "key", k, "error", err)
		}
		values[k] = v
	}

	c.mu.Lock()
	c.values = values
	c.mu.Unlock()

	c.logger.Debug("settings loaded", "count", len(values))
}

// Reload re-reads the store and notifies listeners about every value that
// changed since the last load, e.g. after another process wrote it.
// Keys missing from the store keep their cached value.
func (c *Cache) Reload(ctx context.Context) error {
	c.writeMu.Lock()
	loaded, err := c.store.LoadSettings(ctx)
	if err != nil {
		c.writeMu.Unlock()
		return fmt.Errorf("%w: reload: %v", ErrStoreFailure, err)
	}

	type change struct{ key, value string }
	var changed []change

	c.mu.Lock()
	for k, v := range loaded {
		if old, ok := c.values[k]; !ok || old != v {
			c.values[k] = v
			changed = append(changed, change{k, v})
		}
	}
	c.mu.Unlock()
	c.writeMu.Unlock()

	for _, ch := range changed {
		c.logger.Info("setting changed outside the agent", "key", ch.key)
		c.notify(ch.key, ch.value)
	}
	return nil
}

// Get returns the cached value for key
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set writes the value to the store and, only if that worked, to memory
func (c *Cache) Set(ctx context.Context, key, value string) error {
	c.writeMu.Lock()
	if err := c.store.PutSetting(ctx, key, value); err != nil {
		c.writeMu.Unlock()
		return fmt.Errorf("%w: set %s: %v", ErrStoreFailure, key, err)
	}
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
	c.writeMu.Unlock()

	c.notify(key, value)
	return nil
}

// List returns a copy of every setting
func (c *Cache) List() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// GlobalHotkey returns the configured accelerator or the default
func (c *Cache) GlobalHotkey() string {
	if v, ok := c.Get(KeyGlobalHotkey); ok && v != "" {
		return v
	}
	return DefaultGlobalHotkey
}

// NotificationsEnabled is true unless notifications were set to "off"
func (c *Cache) NotificationsEnabled() bool {
	v, _ := c.Get(KeyNotifications)
	return v != "off"
}

// Subscribe registers fn for changes made through Set or seen by Reload
func (c *Cache) Subscribe(fn ChangeFunc) {
	if fn == nil {
		return
	}
	c.subMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.subMu.Unlock()
}

func (c *Cache) notify(key, value string) {
	c.subMu.Lock()
	listeners := make([]ChangeFunc, len(c.listeners))
	copy(listeners, c.listeners)
	c.subMu.Unlock()

	for _, fn := range listeners {
		fn(key, value)
	}
}
