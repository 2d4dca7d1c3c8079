// Package app wires the capture agent together: storage, settings, hotkey,
// clipboard, enrichment, engine and tray.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mindmorass/spiegel/internal/backend"
	"github.com/mindmorass/spiegel/internal/capture"
	"github.com/mindmorass/spiegel/internal/clipboard"
	"github.com/mindmorass/spiegel/internal/enrich"
	"github.com/mindmorass/spiegel/internal/events"
	"github.com/mindmorass/spiegel/internal/hotkey"
	"github.com/mindmorass/spiegel/internal/settings"
	"github.com/mindmorass/spiegel/internal/storage"
	"github.com/mindmorass/spiegel/internal/ui"
)

// Deps are the OS-facing pieces; tests replace them with fakes
type Deps struct {
	Registrar hotkey.Registrar
	Source    clipboard.Source
	Copier    clipboard.Copier

	// Headless runs without the tray menu
	Headless bool
}

// App is the main application
type App struct {
	config   *Config
	logger   *slog.Logger
	bus      *events.Bus
	store    *storage.Store
	settings *settings.Cache
	hotkeys  *hotkey.Registry
	engine   *capture.Engine
	menubar  *ui.Menubar
	version  string

	hotkeyMu sync.Mutex
	cancel   context.CancelFunc
	bg       sync.WaitGroup
	quitChan chan struct{}
	quitOnce sync.Once
	stopOnce sync.Once
}

// SystemDeps returns the desktop implementations
func SystemDeps() Deps {
	return Deps{
		Registrar: hotkey.NewOSRegistrar(),
		Source:    clipboard.NewSystemSource(),
		Copier:    clipboard.NewKeyboardCopier(),
	}
}

// New creates the tray application with the desktop implementations
func New(config *Config, version string, logger *slog.Logger) (*App, error) {
	return Assemble(config, SystemDeps(), version, logger)
}

// Assemble builds the application from config and deps
func Assemble(config *Config, deps Deps, version string, logger *slog.Logger) (*App, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	bus := events.NewBus()

	store, err := storage.Open(config.DataDir, bus)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cache := settings.New(store, logger.With("component", "settings"))

	pipeline := enrich.NewPipeline(config.LLM.PipelineConfig(), cache, logger.With("component", "enrich"))
	reader := clipboard.NewReader(deps.Source, deps.Copier, config.Capture.ReaderConfig(), logger.With("component", "clipboard"))
	engine := capture.NewEngine(reader, pipeline, store, bus, config.Capture.EngineConfig(), logger.With("component", "capture"))

	a := &App{
		config:   config,
		logger:   logger,
		bus:      bus,
		store:    store,
		settings: cache,
		hotkeys:  hotkey.NewRegistry(deps.Registrar, logger.With("component", "hotkey")),
		engine:   engine,
		version:  version,
		quitChan: make(chan struct{}),
	}

	cache.Subscribe(a.onSettingChanged)

	notifier := ui.NewNotifier(a.notificationsEnabled, logger.With("component", "notify"))
	bus.Subscribe(notifier.HandleEvent)

	if !deps.Headless {
		a.menubar = ui.NewMenubar(a, logger.With("component", "menubar"))
		bus.Subscribe(a.menubar.HandleEvent)
		engine.OnStateChange(a.menubar.OnState)
	}

	return a, nil
}

// Start loads settings, binds the hotkey and starts the engine
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.settings.Initialize(ctx)
	a.bindInitialHotkey()

	a.engine.Start(ctx)
	a.engine.Listen(ctx, a.hotkeys.Events())

	if a.config.SettingsReload > 0 {
		a.bg.Add(1)
		go a.watchSettings(ctx, a.config.SettingsReload)
	}
}

// watchSettings picks up settings written by other processes, such as
// "spiegel hotkey set", so they apply without a restart
func (a *App) watchSettings(ctx context.Context, interval time.Duration) {
	defer a.bg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.settings.Reload(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("settings reload failed", "error", err)
			}
		}
	}
}

// Run starts the agent and blocks until Quit or ctx ends
func (a *App) Run(ctx context.Context) error {
	if a.menubar == nil {
		a.Start(ctx)
		defer a.Shutdown()

		select {
		case <-ctx.Done():
		case <-a.quitChan:
		}
		return nil
	}

	// hotkey registration needs the tray's event loop on macOS, so start
	// once it is running
	var started sync.WaitGroup
	a.menubar.OnReady(func() {
		started.Add(1)
		go func() {
			defer started.Done()
			a.Start(ctx)
			a.menubar.RefreshHotkey()
		}()
	})

	go func() {
		select {
		case <-ctx.Done():
			a.Quit()
		case <-a.quitChan:
		}
	}()

	// systray needs the main goroutine
	a.menubar.Run()

	started.Wait()
	a.Shutdown()
	return nil
}

// Quit asks Run to return
func (a *App) Quit() {
	a.quitOnce.Do(func() {
		close(a.quitChan)
		if a.menubar != nil {
			a.menubar.Quit()
		}
	})
}

// Shutdown releases the hotkey, drains the engine and closes the store.
// Pending enrichment is cancelled first; those cycles are still saved with
// fallback values.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		if err := a.hotkeys.Close(); err != nil {
			a.logger.Warn("hotkey close failed", "error", err)
		}
		if a.cancel != nil {
			a.cancel()
		}
		a.engine.Stop()
		a.bg.Wait()
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close failed", "error", err)
		}
	})
}

func (a *App) bindInitialHotkey() {
	spec := a.settings.GlobalHotkey()
	b, err := hotkey.Parse(spec)
	if err != nil {
		a.logger.Error("stored hotkey is invalid, using default", "hotkey", spec, "error", err)
		b, _ = hotkey.Parse(settings.DefaultGlobalHotkey)
	}
	if err := a.hotkeys.Register(b); err != nil {
		a.logger.Error("global hotkey not bound, captures only via tray", "hotkey", b.String(), "error", err)
	}
}

// SetGlobalHotkey validates spec, rebinds and then persists it. An invalid
// spec is rejected before anything changes; a binding the OS refuses is not
// saved, and a failed save restores the previous binding.
func (a *App) SetGlobalHotkey(ctx context.Context, spec string) error {
	b, err := hotkey.Parse(spec)
	if err != nil {
		return err
	}

	a.hotkeyMu.Lock()
	prev, hadPrev := a.hotkeys.Binding()
	err = a.hotkeys.Register(b)
	a.hotkeyMu.Unlock()
	if err != nil {
		return err
	}

	// Set notifies onSettingChanged, which finds b already bound
	if err := a.settings.Set(ctx, settings.KeyGlobalHotkey, spec); err != nil {
		if hadPrev {
			a.hotkeyMu.Lock()
			if rerr := a.hotkeys.Register(prev); rerr != nil {
				a.logger.Error("could not restore previous hotkey", "hotkey", prev.String(), "error", rerr)
			}
			a.hotkeyMu.Unlock()
		}
		a.refreshHotkey()
		return err
	}

	a.refreshHotkey()
	return nil
}

// onSettingChanged rebinds when global_hotkey changes outside SetGlobalHotkey
func (a *App) onSettingChanged(key, value string) {
	if key != settings.KeyGlobalHotkey {
		return
	}

	b, err := hotkey.Parse(value)
	if err != nil {
		a.logger.Error("ignoring invalid hotkey setting", "hotkey", value, "error", err)
		return
	}

	a.hotkeyMu.Lock()
	defer a.hotkeyMu.Unlock()

	if cur, ok := a.hotkeys.Binding(); ok && cur == b {
		return
	}
	if err := a.hotkeys.Register(b); err != nil {
		a.logger.Error("hotkey change not applied", "hotkey", b.String(), "error", err)
		return
	}
	a.refreshHotkey()
}

func (a *App) refreshHotkey() {
	if a.menubar != nil {
		a.menubar.RefreshHotkey()
	}
}

// ValidateSetting checks a value before it is written
func ValidateSetting(key, value string) error {
	switch key {
	case settings.KeyGlobalHotkey:
		_, err := hotkey.Parse(value)
		return err
	case settings.KeyNotifications:
		if value != "on" && value != "off" {
			return fmt.Errorf("%s must be \"on\" or \"off\"", key)
		}
	case "":
		return errors.New("setting key is empty")
	}
	return nil
}

// SetSetting writes one runtime setting; the hotkey goes through SetGlobalHotkey
func (a *App) SetSetting(ctx context.Context, key, value string) error {
	if err := ValidateSetting(key, value); err != nil {
		return err
	}
	if key == settings.KeyGlobalHotkey {
		return a.SetGlobalHotkey(ctx, value)
	}
	return a.settings.Set(ctx, key, value)
}

// ExportTo writes every record to dir, or to the configured export backend
// when dir is empty. It returns the export name.
func (a *App) ExportTo(ctx context.Context, dir string) (string, error) {
	cfg := &backend.Config{
		Type:     backend.BackendType(a.config.Export.Backend),
		Location: a.config.Export.Location,
		S3Region: a.config.Export.S3Region,
	}
	if dir != "" {
		cfg = &backend.Config{Type: backend.BackendLocal, Location: dir}
	}
	return ExportRecords(ctx, a.store, cfg)
}

// ExportRecords snapshots store into the backend described by cfg
func ExportRecords(ctx context.Context, store *storage.Store, cfg *backend.Config) (string, error) {
	b, err := backend.New(cfg)
	if err != nil {
		return "", err
	}
	defer b.Close()

	records, err := store.List(ctx)
	if err != nil {
		return "", err
	}
	return backend.Export(ctx, b, records, time.Now())
}

func (a *App) notificationsEnabled() bool {
	if v, ok := a.settings.Get(settings.KeyNotifications); ok {
		return v != "off"
	}
	return a.config.Notifications
}

// GetEngine returns the capture engine
func (a *App) GetEngine() *capture.Engine {
	return a.engine
}

// GetHotkey returns the bound accelerator
func (a *App) GetHotkey() string {
	b, ok := a.hotkeys.Binding()
	if !ok {
		return "not bound"
	}
	return b.String()
}

// GetVersion returns the application version
func (a *App) GetVersion() string {
	return a.version
}

// Settings returns the settings cache
func (a *App) Settings() *settings.Cache {
	return a.settings
}

// Store returns the record store
func (a *App) Store() *storage.Store {
	return a.store
}

// Events returns the event bus
func (a *App) Events() *events.Bus {
	return a.bus
}
