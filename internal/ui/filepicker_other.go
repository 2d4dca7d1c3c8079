//go:build !darwin

package ui

const canPickFolder = false

// PickExportDir has no native dialog on this platform
func PickExportDir() (string, bool) {
	return "", false
}
