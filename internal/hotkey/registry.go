package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrClosed is returned when registering on a closed registry
var ErrClosed = errors.New("hotkey registry closed")

// Handle is one active OS registration
type Handle interface {
	// Keydown delivers one value per key press
	Keydown() <-chan struct{}

	// Unregister releases the shortcut
	Unregister() error
}

// Registrar talks to the OS shortcut listener
type Registrar interface {
	Register(b Binding) (Handle, error)
}

// Registry keeps at most one binding registered and funnels its presses into
// a single channel that survives re-registration.
type Registry struct {
	registrar Registrar
	logger    *slog.Logger
	events    chan struct{}

	mu      sync.Mutex
	active  Handle
	binding Binding
	stop    chan struct{}
	closed  bool
}

// NewRegistry creates a registry with nothing bound
func NewRegistry(registrar Registrar, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		registrar: registrar,
		logger:    logger,
		events:    make(chan struct{}, 16),
	}
}

// Events delivers one value per press of whichever binding is active
func (r *Registry) Events() <-chan struct{} {
	return r.events
}

// Binding returns the active binding
func (r *Registry) Binding() (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.binding, r.active != nil
}

// Register replaces the active binding: the old one is unregistered first,
// then the new one is registered. A registration failure is returned as is;
// the previous binding is restored when the OS still allows it.
func (r *Registry) Register(b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	prev, hadPrev := r.binding, r.active != nil
	r.release()

	h, err := r.registrar.Register(b)
	if err != nil {
		if hadPrev {
			if restored, rerr := r.registrar.Register(prev); rerr == nil {
				r.activate(restored, prev)
				r.logger.Warn("hotkey registration failed, kept previous binding",
					"hotkey", b.String(), "previous", prev.String(), "error", err)
			} else {
				r.logger.Error("hotkey registration failed and previous binding lost",
					"hotkey", b.String(), "previous", prev.String(), "error", err, "restore_error", rerr)
			}
		}
		return fmt.Errorf("register hotkey %s: %w", b, err)
	}

	r.activate(h, b)
	r.logger.Info("hotkey registered", "hotkey", b.String())
	return nil
}

// Close unregisters the active binding. Events is left open.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.release()
	return nil
}

func (r *Registry) activate(h Handle, b Binding) {
	stop := make(chan struct{})
	r.active, r.binding, r.stop = h, b, stop
	go r.forward(h, stop)
}

// release must be called with mu held
func (r *Registry) release() {
	if r.active == nil {
		return
	}
	close(r.stop)
	if err := r.active.Unregister(); err != nil {
		r.logger.Warn("hotkey unregister failed", "hotkey", r.binding.String(), "error", err)
	}
	r.active, r.binding, r.stop = nil, Binding{}, nil
}

func (r *Registry) forward(h Handle, stop <-chan struct{}) {
	keydown := h.Keydown()
	for {
		select {
		case <-stop:
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			select {
			case r.events <- struct{}{}:
			case <-stop:
				return
			default:
				r.logger.Warn("hotkey press dropped, listener busy")
			}
		}
	}
}
