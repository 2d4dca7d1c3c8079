package hotkey

import (
	"fmt"

	xhotkey "golang.design/x/hotkey"
)

// OSRegistrar registers shortcuts with the desktop session
type OSRegistrar struct{}

// NewOSRegistrar returns the registrar for the running platform
func NewOSRegistrar() OSRegistrar {
	return OSRegistrar{}
}

// Register binds b system wide
func (OSRegistrar) Register(b Binding) (Handle, error) {
	key, ok := nativeKeys[b.Key]
	if !ok {
		return nil, fmt.Errorf("%w: key %q not supported", ErrInvalidHotkeySpec, b.Key)
	}

	hk := xhotkey.New(nativeModifiers(b.Modifiers), key)
	if err := hk.Register(); err != nil {
		return nil, err
	}

	h := &osHandle{
		hk:      hk,
		keydown: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go h.pump()
	return h, nil
}

type osHandle struct {
	hk      *xhotkey.Hotkey
	keydown chan struct{}
	done    chan struct{}
}

func (h *osHandle) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *osHandle) Unregister() error {
	close(h.done)
	return h.hk.Unregister()
}

func (h *osHandle) pump() {
	events := h.hk.Keydown()
	for {
		select {
		case <-h.done:
			return
		case <-events:
			select {
			case h.keydown <- struct{}{}:
			default:
			}
		}
	}
}

func nativeModifiers(m Modifiers) []xhotkey.Modifier {
	var mods []xhotkey.Modifier
	for _, pair := range []struct {
		mod    Modifiers
		native xhotkey.Modifier
	}{
		{ModControl, modControl},
		{ModShift, modShift},
		{ModAlt, modAlt},
		{ModMeta, modMeta},
	} {
		if m.Has(pair.mod) {
			mods = append(mods, pair.native)
		}
	}
	return mods
}

var nativeKeys = map[Key]xhotkey.Key{
	"A": xhotkey.KeyA, "B": xhotkey.KeyB, "C": xhotkey.KeyC, "D": xhotkey.KeyD,
	"E": xhotkey.KeyE, "F": xhotkey.KeyF, "G": xhotkey.KeyG, "H": xhotkey.KeyH,
	"I": xhotkey.KeyI, "J": xhotkey.KeyJ, "K": xhotkey.KeyK, "L": xhotkey.KeyL,
	"M": xhotkey.KeyM, "N": xhotkey.KeyN, "O": xhotkey.KeyO, "P": xhotkey.KeyP,
	"Q": xhotkey.KeyQ, "R": xhotkey.KeyR, "S": xhotkey.KeyS, "T": xhotkey.KeyT,
	"U": xhotkey.KeyU, "V": xhotkey.KeyV, "W": xhotkey.KeyW, "X": xhotkey.KeyX,
	"Y": xhotkey.KeyY, "Z": xhotkey.KeyZ,

	"0": xhotkey.Key0, "1": xhotkey.Key1, "2": xhotkey.Key2, "3": xhotkey.Key3,
	"4": xhotkey.Key4, "5": xhotkey.Key5, "6": xhotkey.Key6, "7": xhotkey.Key7,
	"8": xhotkey.Key8, "9": xhotkey.Key9,

	"F1": xhotkey.KeyF1, "F2": xhotkey.KeyF2, "F3": xhotkey.KeyF3, "F4": xhotkey.KeyF4,
	"F5": xhotkey.KeyF5, "F6": xhotkey.KeyF6, "F7": xhotkey.KeyF7, "F8": xhotkey.KeyF8,
	"F9": xhotkey.KeyF9, "F10": xhotkey.KeyF10, "F11": xhotkey.KeyF11, "F12": xhotkey.KeyF12,

	"Space":  xhotkey.KeySpace,
	"Enter":  xhotkey.KeyReturn,
	"Escape": xhotkey.KeyEscape,
}
