package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindmorass/spiegel/internal/events"
)

func TestNotifier(t *testing.T) {
	enabled := true
	var sent []string

	n := NewNotifier(func() bool { return enabled }, nil)
	n.notify = func(title, message string) error {
		sent = append(sent, title+": "+message)
		return nil
	}

	n.HandleEvent(events.Event{Kind: events.KindSaved, RecordID: 7})
	n.HandleEvent(events.Event{Kind: events.KindDeleted, RecordID: 7})
	n.HandleEvent(events.Event{Kind: events.KindFailed, Err: errors.New("disk full")})

	enabled = false
	n.HandleEvent(events.Event{Kind: events.KindSaved, RecordID: 8})

	require.Equal(t, []string{
		"Spiegel: Capture #7 saved",
		"Spiegel: Capture could not be saved",
	}, sent)
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "42 seconds", formatDuration(42*time.Second))
	require.Equal(t, "5 minutes", formatDuration(5*time.Minute+10*time.Second))
	require.Equal(t, "3 hours", formatDuration(3*time.Hour))
}

func TestCreateIcon(t *testing.T) {
	require.NotEmpty(t, createIcon())
}
