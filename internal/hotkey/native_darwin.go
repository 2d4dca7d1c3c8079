//go:build darwin

package hotkey

import xhotkey "golang.design/x/hotkey"

const (
	modControl = xhotkey.ModCtrl
	modShift   = xhotkey.ModShift
	modAlt     = xhotkey.ModOption
	modMeta    = xhotkey.ModCmd
)
