package clipboard

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
	xclipboard "golang.design/x/clipboard"
)

// Source reads the OS clipboard
type Source interface {
	// ReadText returns the clipboard text, or ErrEmpty
	ReadText() (string, error)

	// ReadImage returns the clipboard image as raw RGBA pixels, or ErrEmpty
	ReadImage() (RawImage, error)
}

// Copier makes the focused application put its selection on the clipboard
type Copier interface {
	Copy() error
}

// SystemSource reads text through atotto/clipboard and images through
// golang.design/x/clipboard
type SystemSource struct {
	once    sync.Once
	initErr error
}

// NewSystemSource creates a source backed by the OS clipboard
func NewSystemSource() *SystemSource {
	return &SystemSource{}
}

// ReadText reads plain text from the clipboard
func (s *SystemSource) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// ReadImage reads a PNG from the clipboard and expands it to RGBA pixels
func (s *SystemSource) ReadImage() (RawImage, error) {
	s.once.Do(func() {
		s.initErr = xclipboard.Init()
	})
	if s.initErr != nil {
		return RawImage{}, fmt.Errorf("init image clipboard: %w", s.initErr)
	}

	data := xclipboard.Read(xclipboard.FmtImage)
	if len(data) == 0 {
		return RawImage{}, ErrEmpty
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return RawImage{}, fmt.Errorf("decode clipboard png: %w", err)
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	return RawImage{Pix: rgba.Pix, Width: b.Dx(), Height: b.Dy()}, nil
}

// KeyboardCopier simulates Cmd+C on macOS and Ctrl+C elsewhere
type KeyboardCopier struct {
	once    sync.Once
	kb      keybd_event.KeyBonding
	initErr error
	mu      sync.Mutex
}

// NewKeyboardCopier creates a copier; the virtual keyboard is set up on first use
func NewKeyboardCopier() *KeyboardCopier {
	return &KeyboardCopier{}
}

// Copy sends the platform copy combination to the focused window
func (c *KeyboardCopier) Copy() error {
	c.once.Do(func() {
		c.kb, c.initErr = keybd_event.NewKeyBonding()
		// uinput needs time before the new device accepts events
		if c.initErr == nil && runtime.GOOS == "linux" {
			time.Sleep(2 * time.Second)
		}
	})
	if c.initErr != nil {
		return fmt.Errorf("init keyboard: %w", c.initErr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.kb.Clear()
	c.kb.SetKeys(keybd_event.VK_C)
	if runtime.GOOS == "darwin" {
		c.kb.HasSuper(true)
	} else {
		c.kb.HasCTRL(true)
	}
	return c.kb.Launching()
}
