package hotkey

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cmdOrCtrl := "Control"
	if runtime.GOOS == "darwin" {
		cmdOrCtrl = "Meta"
	}

	tests := []struct {
		spec string
		want string
	}{
		{"CommandOrControl+Shift+S", cmdOrCtrl + "+Shift+S"},
		{"alt+f9", "Alt+F9"},
		{"Ctrl + Space", "Control+Space"},
		{"Shift+Control+enter", "Control+Shift+Enter"},
		{"Cmd+Option+7", "Alt+Meta+7"},
		{"Escape", "Escape"},
		{"F12", "F12"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			b, err := Parse(tt.spec)
			require.NoError(t, err)
			require.Equal(t, tt.want, b.String())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, spec := range []string{
		"",
		"Shift+",
		"Ctrl+Shift",
		"Ctrl+A+B",
		"Hyper+S",
		"Ctrl+F13",
	} {
		t.Run(spec, func(t *testing.T) {
			_, err := Parse(spec)
			require.ErrorIs(t, err, ErrInvalidHotkeySpec)
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, spec := range []string{"Control+Alt+Shift+Meta+K", "Alt+0", "Shift+F1"} {
		b, err := Parse(spec)
		require.NoError(t, err)

		again, err := Parse(b.String())
		require.NoError(t, err)
		require.Equal(t, b, again)
	}
}

type fakeHandle struct {
	binding      Binding
	keydown      chan struct{}
	unregistered bool
}

func (h *fakeHandle) Keydown() <-chan struct{} { return h.keydown }

func (h *fakeHandle) Unregister() error {
	h.unregistered = true
	return nil
}

type fakeRegistrar struct {
	mu      sync.Mutex
	fail    map[Binding]error
	handles []*fakeHandle
}

func (f *fakeRegistrar) Register(b Binding) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[b]; err != nil {
		return nil, err
	}
	h := &fakeHandle{binding: b, keydown: make(chan struct{}, 1)}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeRegistrar) last() *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[len(f.handles)-1]
}

func mustParse(t *testing.T, spec string) Binding {
	t.Helper()
	b, err := Parse(spec)
	require.NoError(t, err)
	return b
}

func TestRegistry_ForwardsPresses(t *testing.T) {
	reg := &fakeRegistrar{}
	r := NewRegistry(reg, nil)
	defer r.Close()

	require.NoError(t, r.Register(mustParse(t, "Alt+F9")))
	reg.last().keydown <- struct{}{}

	select {
	case <-r.Events():
	case <-time.After(time.Second):
		t.Fatal("press not forwarded")
	}
}

func TestRegistry_Replace(t *testing.T) {
	reg := &fakeRegistrar{}
	r := NewRegistry(reg, nil)
	defer r.Close()

	first := mustParse(t, "Alt+F9")
	second := mustParse(t, "Ctrl+Shift+K")

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	require.True(t, reg.handles[0].unregistered)
	require.False(t, reg.handles[1].unregistered)

	active, ok := r.Binding()
	require.True(t, ok)
	require.Equal(t, second, active)
}

func TestRegistry_FailureRestoresPrevious(t *testing.T) {
	bad := mustParse(t, "Ctrl+Q")
	reg := &fakeRegistrar{fail: map[Binding]error{bad: errors.New("already grabbed")}}
	r := NewRegistry(reg, nil)
	defer r.Close()

	good := mustParse(t, "Alt+F9")
	require.NoError(t, r.Register(good))

	err := r.Register(bad)
	require.Error(t, err)

	active, ok := r.Binding()
	require.True(t, ok)
	require.Equal(t, good, active)
	require.Len(t, reg.handles, 2)
	require.Equal(t, good, reg.last().binding)
}

func TestRegistry_Closed(t *testing.T) {
	reg := &fakeRegistrar{}
	r := NewRegistry(reg, nil)

	require.NoError(t, r.Register(mustParse(t, "Alt+F9")))
	require.NoError(t, r.Close())
	require.True(t, reg.handles[0].unregistered)

	_, ok := r.Binding()
	require.False(t, ok)
	require.ErrorIs(t, r.Register(mustParse(t, "Alt+F8")), ErrClosed)
}
