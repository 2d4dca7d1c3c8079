//go:build linux

package hotkey

import xhotkey "golang.design/x/hotkey"

// X11 maps Alt to Mod1 and Super to Mod4 on every common layout
const (
	modControl = xhotkey.ModCtrl
	modShift   = xhotkey.ModShift
	modAlt     = xhotkey.Mod1
	modMeta    = xhotkey.Mod4
)
