package ui

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"time"

	"fyne.io/systray"

	"github.com/mindmorass/spiegel/internal/capture"
	"github.com/mindmorass/spiegel/internal/events"
	"github.com/mindmorass/spiegel/internal/hotkey"
)

// App is what the menubar needs from the application
type App interface {
	GetEngine() *capture.Engine
	GetHotkey() string
	GetVersion() string
	ExportTo(ctx context.Context, dir string) (string, error)
	SetGlobalHotkey(ctx context.Context, spec string) error
	Quit()
}

// HotkeyPresets are offered in the tray's hotkey submenu
var HotkeyPresets = []string{
	"CommandOrControl+Shift+S",
	"CommandOrControl+Shift+C",
	"CommandOrControl+Alt+Space",
	"Control+Alt+K",
	"Alt+F9",
}

// Menubar manages the system tray
type Menubar struct {
	app    App
	logger *slog.Logger

	mStatus      *systray.MenuItem
	mLastCapture *systray.MenuItem
	mHotkey      *systray.MenuItem
	mPresets     []*systray.MenuItem
	mPause       *systray.MenuItem
	mResume      *systray.MenuItem
	mExport      *systray.MenuItem
	mExportTo    *systray.MenuItem
	mVersion     *systray.MenuItem

	onReady  func()
	ready    chan struct{}
	quitChan chan struct{}
}

// createIcon draws a small hand mirror as a template icon
func createIcon() []byte {
	const size = 22
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	black := color.RGBA{0, 0, 0, 255}

	// mirror glass outline
	for x := 4; x < 18; x++ {
		for y := 2; y < 15; y++ {
			if x == 4 || x == 17 || y == 2 || y == 14 {
				img.Set(x, y, black)
			}
		}
	}

	// reflection streaks
	for i := 0; i < 5; i++ {
		img.Set(7+i, 10-i, black)
		img.Set(10+i, 11-i, black)
	}

	// handle
	for y := 15; y < 21; y++ {
		img.Set(10, y, black)
		img.Set(11, y, black)
	}

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// NewMenubar creates a new menubar
func NewMenubar(app App, logger *slog.Logger) *Menubar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Menubar{
		app:      app,
		logger:   logger,
		ready:    make(chan struct{}),
		quitChan: make(chan struct{}),
	}
}

// OnReady sets a callback run once the tray is up. It is called on the
// UI thread and must not block.
func (m *Menubar) OnReady(fn func()) {
	m.onReady = fn
}

// Run starts the menubar (blocking)
func (m *Menubar) Run() {
	systray.Run(m.setup, m.onExit)
}

// Quit signals the menubar to exit
func (m *Menubar) Quit() {
	systray.Quit()
}

func (m *Menubar) setup() {
	systray.SetTemplateIcon(createIcon(), createIcon())
	systray.SetTitle("")
	systray.SetTooltip("Spiegel")

	m.mStatus = systray.AddMenuItem("Status: Starting...", "")
	m.mStatus.Disable()

	m.mLastCapture = systray.AddMenuItem("Last capture: Never", "")
	m.mLastCapture.Disable()

	m.mHotkey = systray.AddMenuItem("Hotkey: "+m.app.GetHotkey(), "Change the capture hotkey")
	for _, spec := range HotkeyPresets {
		item := m.mHotkey.AddSubMenuItemCheckbox(spec, "", false)
		m.mPresets = append(m.mPresets, item)
		go m.presetLoop(item, spec)
	}
	m.checkPreset()

	systray.AddSeparator()

	m.mPause = systray.AddMenuItem("Pause Capture", "")
	m.mResume = systray.AddMenuItem("Resume Capture", "")
	m.mResume.Hide()

	m.mExport = systray.AddMenuItem("Export Captures", "Write all captures to the configured export location")
	m.mExportTo = systray.AddMenuItem("Export to Folder...", "Write all captures as JSON lines to a folder")
	if !canPickFolder {
		m.mExportTo.Hide()
	}

	systray.AddSeparator()

	m.mVersion = systray.AddMenuItem("Version: "+m.app.GetVersion(), "")
	m.mVersion.Disable()
	mQuit := systray.AddMenuItem("Quit", "")

	m.updateState(capture.StateIdle)
	close(m.ready)

	if m.onReady != nil {
		m.onReady()
	}

	go m.lastCaptureLoop()

	go func() {
		for {
			select {
			case <-m.mPause.ClickedCh:
				m.app.GetEngine().Pause()
				m.mPause.Hide()
				m.mResume.Show()
				m.mStatus.SetTitle("Status: Paused ⏸")

			case <-m.mResume.ClickedCh:
				m.app.GetEngine().Resume()
				m.mResume.Hide()
				m.mPause.Show()
				m.updateState(capture.StateIdle)

			case <-m.mExport.ClickedCh:
				go m.export("")

			case <-m.mExportTo.ClickedCh:
				go func() {
					if dir, ok := PickExportDir(); ok {
						m.export(dir)
					}
				}()

			case <-mQuit.ClickedCh:
				m.app.Quit()
				return

			case <-m.quitChan:
				return
			}
		}
	}()
}

func (m *Menubar) onExit() {
	close(m.quitChan)
}

// OnState is passed to the engine as its state handler
func (m *Menubar) OnState(_ string, state capture.State) {
	if !m.isReady() {
		return
	}
	m.updateState(state)
}

// HandleEvent refreshes the menu after captures are saved or fail
func (m *Menubar) HandleEvent(e events.Event) {
	if !m.isReady() {
		return
	}
	switch e.Kind {
	case events.KindSaved:
		m.refreshLastCapture()
	case events.KindFailed:
		m.mStatus.SetTitle("Status: Error ⚠")
	}
}

// RefreshHotkey shows the currently bound accelerator
func (m *Menubar) RefreshHotkey() {
	if !m.isReady() {
		return
	}
	m.mHotkey.SetTitle("Hotkey: " + m.app.GetHotkey())
	m.checkPreset()
}

func (m *Menubar) presetLoop(item *systray.MenuItem, spec string) {
	for {
		select {
		case <-item.ClickedCh:
			m.chooseHotkey(spec)
		case <-m.quitChan:
			return
		}
	}
}

// chooseHotkey rebinds the running agent to spec
func (m *Menubar) chooseHotkey(spec string) {
	if err := m.app.SetGlobalHotkey(context.Background(), spec); err != nil {
		m.logger.Error("hotkey change failed", "hotkey", spec, "error", err)
		if m.isReady() {
			m.mStatus.SetTitle("Status: Hotkey unavailable ⚠")
		}
		return
	}
	m.logger.Info("hotkey changed", "hotkey", spec)
}

// checkPreset ticks the preset matching the bound accelerator
func (m *Menubar) checkPreset() {
	current := m.app.GetHotkey()
	for i, item := range m.mPresets {
		if presetMatches(HotkeyPresets[i], current) {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func presetMatches(spec, current string) bool {
	b, err := hotkey.Parse(spec)
	return err == nil && b.String() == current
}

func (m *Menubar) isReady() bool {
	select {
	case <-m.ready:
		return true
	default:
		return false
	}
}

func (m *Menubar) updateState(state capture.State) {
	if m.app.GetEngine().IsPaused() {
		m.mStatus.SetTitle("Status: Paused ⏸")
		return
	}
	switch state {
	case capture.StateIdle:
		m.mStatus.SetTitle("Status: Ready ✓")
	case capture.StateAborted:
		m.mStatus.SetTitle("Status: Nothing captured")
	default:
		m.mStatus.SetTitle("Status: " + state.String() + "...")
	}
}

func (m *Menubar) export(dir string) {
	name, err := m.app.ExportTo(context.Background(), dir)
	if err != nil {
		m.logger.Error("export failed", "error", err)
		m.mStatus.SetTitle("Status: Export failed ⚠")
		return
	}
	m.logger.Info("export written", "name", name)
}

func (m *Menubar) refreshLastCapture() {
	rec, ok := m.app.GetEngine().GetLastRecord()
	if !ok {
		m.mLastCapture.SetTitle("Last capture: Never")
		return
	}
	m.mLastCapture.SetTitle(fmt.Sprintf("Last capture: %s, %s ago",
		rec.Category, formatDuration(time.Since(rec.CreatedAt))))
}

func (m *Menubar) lastCaptureLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.refreshLastCapture()
		case <-m.quitChan:
			return
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	} else {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
}
