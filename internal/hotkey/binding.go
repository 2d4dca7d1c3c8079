// Package hotkey parses accelerator strings such as "CommandOrControl+Shift+S"
// and keeps one global shortcut registered with the OS.
package hotkey

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrInvalidHotkeySpec is returned for accelerator strings that cannot be bound
var ErrInvalidHotkeySpec = errors.New("invalid hotkey spec")

// Modifiers is a set of modifier keys
type Modifiers uint8

const (
	ModMeta Modifiers = 1 << iota
	ModShift
	ModAlt
	ModControl
)

// Has reports whether every modifier in m is set
func (s Modifiers) Has(m Modifiers) bool {
	return s&m == m
}

// Key is a logical, platform independent key name
type Key string

// Binding is the parsed, registrable form of an accelerator
type Binding struct {
	Modifiers Modifiers
	Key       Key
}

// String renders the binding in canonical form, e.g. "Control+Shift+S"
func (b Binding) String() string {
	var parts []string
	for _, m := range modifierOrder {
		if b.Modifiers.Has(m.mod) {
			parts = append(parts, m.name)
		}
	}
	parts = append(parts, string(b.Key))
	return strings.Join(parts, "+")
}

var modifierOrder = []struct {
	mod  Modifiers
	name string
}{
	{ModControl, "Control"},
	{ModAlt, "Alt"},
	{ModShift, "Shift"},
	{ModMeta, "Meta"},
}

// commandOrControl is Cmd on macOS and Ctrl everywhere else
var commandOrControl = func() Modifiers {
	if runtime.GOOS == "darwin" {
		return ModMeta
	}
	return ModControl
}()

var modifierNames = map[string]Modifiers{
	"commandorcontrol": commandOrControl,
	"cmdorctrl":        commandOrControl,
	"command":          ModMeta,
	"cmd":              ModMeta,
	"meta":             ModMeta,
	"super":            ModMeta,
	"shift":            ModShift,
	"alt":              ModAlt,
	"option":           ModAlt,
	"control":          ModControl,
	"ctrl":             ModControl,
}

// keyNames maps upper-cased tokens to keys
var keyNames = func() map[string]Key {
	m := map[string]Key{
		"SPACE":  "Space",
		"ENTER":  "Enter",
		"ESCAPE": "Escape",
	}
	for c := 'A'; c <= 'Z'; c++ {
		m[string(c)] = Key(c)
	}
	for c := '0'; c <= '9'; c++ {
		m[string(c)] = Key(c)
	}
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("F%d", i)
		m[name] = Key(name)
	}
	return m
}()

// Parse turns an accelerator such as "Alt+F9" into a Binding. Tokens are
// separated by "+" and matched case-insensitively; exactly one of them must
// be a key.
func Parse(spec string) (Binding, error) {
	var (
		b    Binding
		keys int
	)

	for _, part := range strings.Split(spec, "+") {
		token := strings.TrimSpace(part)
		if token == "" {
			return Binding{}, fmt.Errorf("%w: %q: empty token", ErrInvalidHotkeySpec, spec)
		}

		if m, ok := modifierNames[strings.ToLower(token)]; ok {
			b.Modifiers |= m
			continue
		}

		k, ok := keyNames[strings.ToUpper(token)]
		if !ok {
			return Binding{}, fmt.Errorf("%w: %q: unknown key %q", ErrInvalidHotkeySpec, spec, token)
		}
		b.Key = k
		keys++
	}

	switch keys {
	case 1:
		return b, nil
	case 0:
		return Binding{}, fmt.Errorf("%w: %q: no key specified", ErrInvalidHotkeySpec, spec)
	default:
		return Binding{}, fmt.Errorf("%w: %q: %d keys specified, want one", ErrInvalidHotkeySpec, spec, keys)
	}
}
