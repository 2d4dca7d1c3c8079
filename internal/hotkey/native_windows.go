//go:build windows

package hotkey

import xhotkey "golang.design/x/hotkey"

const (
	modControl = xhotkey.ModCtrl
	modShift   = xhotkey.ModShift
	modAlt     = xhotkey.ModAlt
	modMeta    = xhotkey.ModWin
)
