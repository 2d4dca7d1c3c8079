package ui

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/mindmorass/spiegel/internal/events"
)

const appName = "Spiegel"

// Notifier turns capture events into desktop notifications
type Notifier struct {
	enabled func() bool
	notify  func(title, message string) error
	logger  *slog.Logger
}

// NewNotifier creates a notifier; enabled is checked on every event
func NewNotifier(enabled func() bool, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		enabled: enabled,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		logger: logger,
	}
}

// HandleEvent is subscribed to the event bus
func (n *Notifier) HandleEvent(e events.Event) {
	if n.enabled != nil && !n.enabled() {
		return
	}

	var msg string
	switch e.Kind {
	case events.KindSaved:
		msg = fmt.Sprintf("Capture #%d saved", e.RecordID)
	case events.KindFailed:
		msg = "Capture could not be saved"
	default:
		return
	}

	if err := n.notify(appName, msg); err != nil {
		n.logger.Debug("notification failed", "error", err)
	}
}
