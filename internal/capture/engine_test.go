package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mindmorass/spiegel/internal/clipboard"
	"github.com/mindmorass/spiegel/internal/enrich"
	"github.com/mindmorass/spiegel/internal/events"
	"github.com/mindmorass/spiegel/internal/storage"
	"github.com/stretchr/testify/require"
)

// sequenceReader returns "clip-1", "clip-2", ... or err when set
type sequenceReader struct {
	mu    sync.Mutex
	n     int
	err   error
	gate  chan struct{}
	enter chan struct{}
}

func (r *sequenceReader) Capture(ctx context.Context) (clipboard.Capture, error) {
	if r.enter != nil {
		r.enter <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return clipboard.Capture{}, r.err
	}
	r.n++
	return clipboard.NewText(fmt.Sprintf("clip-%d", r.n)), nil
}

type stubEnricher struct {
	gate chan struct{}
}

func (s *stubEnricher) Enrich(ctx context.Context, c clipboard.Capture) enrich.Result {
	if s.gate != nil {
		<-s.gate
	}
	return enrich.Result{Category: "notes", Tags: []string{"test"}}
}

type memStore struct {
	mu      sync.Mutex
	err     error
	records []storage.Record
}

func (m *memStore) Create(ctx context.Context, r storage.NewRecord) (storage.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return storage.Record{}, m.err
	}
	rec := storage.Record{
		ID:        int64(len(m.records) + 1),
		Capture:   r.Capture,
		Category:  r.Category,
		Summary:   r.Summary,
		Tags:      r.Tags,
		CreatedAt: time.Now(),
	}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memStore) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.records {
		s, _ := r.Capture.Text()
		out = append(out, s)
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Emit(e events.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(_ string, s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) snapshot() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func TestEngine_SavesCapture(t *testing.T) {
	store := &memStore{}
	log := &eventLog{}
	states := &stateLog{}

	e := NewEngine(&sequenceReader{}, &stubEnricher{}, store, log, Config{}, nil)
	e.OnStateChange(states.record)
	e.Start(context.Background())
	defer e.Stop()

	require.True(t, e.Trigger())

	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, events.Event{Kind: events.KindSaved, RecordID: 1}, log.snapshot()[0])
	require.Equal(t, []string{"clip-1"}, store.texts())
	require.Equal(t, []State{StateCapturing, StateEnriching, StatePersisting, StateIdle}, states.snapshot())

	rec, ok := e.GetLastRecord()
	require.True(t, ok)
	require.Equal(t, "notes", rec.Category)
	require.Equal(t, int64(1), e.Stats().Saved)
}

func TestEngine_AbortEmitsNothing(t *testing.T) {
	store := &memStore{}
	log := &eventLog{}
	states := &stateLog{}

	e := NewEngine(&sequenceReader{err: clipboard.ErrClipboardUnavailable}, &stubEnricher{}, store, log, Config{}, nil)
	e.OnStateChange(states.record)
	e.Start(context.Background())

	require.True(t, e.Trigger())
	require.Eventually(t, func() bool { return e.Stats().Aborted == 1 }, time.Second, 5*time.Millisecond)
	e.Stop()

	require.Empty(t, log.snapshot())
	require.Empty(t, store.texts())
	require.Equal(t, []State{StateCapturing, StateAborted, StateIdle}, states.snapshot())
	require.ErrorIs(t, e.GetLastError(), clipboard.ErrClipboardUnavailable)
}

func TestEngine_PersistFailureEmitsFailed(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	log := &eventLog{}

	e := NewEngine(&sequenceReader{}, &stubEnricher{}, store, log, Config{}, nil)
	e.Start(context.Background())
	defer e.Stop()

	require.True(t, e.Trigger())
	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	got := log.snapshot()[0]
	require.Equal(t, events.KindFailed, got.Kind)
	require.ErrorIs(t, got.Err, ErrPersistence)
	require.Equal(t, int64(1), e.Stats().Failed)
}

func TestEngine_PressOrder(t *testing.T) {
	store := &memStore{}
	log := &eventLog{}

	e := NewEngine(&sequenceReader{}, &stubEnricher{}, store, log, Config{QueueSize: 16}, nil)
	e.Start(context.Background())
	defer e.Stop()

	for i := 0; i < 5; i++ {
		require.True(t, e.Trigger())
	}

	require.Eventually(t, func() bool { return len(log.snapshot()) == 5 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"clip-1", "clip-2", "clip-3", "clip-4", "clip-5"}, store.texts())
}

func TestEngine_QueueFullDrops(t *testing.T) {
	reader := &sequenceReader{gate: make(chan struct{}), enter: make(chan struct{}, 8)}
	e := NewEngine(reader, &stubEnricher{}, &memStore{}, nil, Config{QueueSize: 1}, nil)
	e.Start(context.Background())

	require.True(t, e.Trigger())
	<-reader.enter // first trigger is being captured

	require.True(t, e.Trigger())
	require.False(t, e.Trigger())
	require.Equal(t, int64(1), e.Stats().Dropped)

	close(reader.gate)
	e.Stop()
}

func TestEngine_PauseResume(t *testing.T) {
	e := NewEngine(&sequenceReader{}, &stubEnricher{}, &memStore{}, nil, Config{}, nil)
	require.False(t, e.Trigger(), "stopped engine accepts no triggers")

	e.Start(context.Background())
	defer e.Stop()

	e.Pause()
	require.True(t, e.IsPaused())
	require.False(t, e.Trigger())

	e.Resume()
	require.True(t, e.Trigger())
}

func TestEngine_StopWaitsForInFlight(t *testing.T) {
	store := &memStore{}
	enricher := &stubEnricher{gate: make(chan struct{})}
	reader := &sequenceReader{enter: make(chan struct{}, 1)}

	e := NewEngine(reader, enricher, store, nil, Config{}, nil)
	e.Start(context.Background())

	require.True(t, e.Trigger())
	<-reader.enter

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was enriching")
	case <-time.After(50 * time.Millisecond):
	}

	close(enricher.gate)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	require.Equal(t, []string{"clip-1"}, store.texts())
	require.False(t, e.IsRunning())
}

func TestEngine_StopDropsQueuedPresses(t *testing.T) {
	store := &memStore{}
	reader := &sequenceReader{gate: make(chan struct{}), enter: make(chan struct{}, 8)}

	e := NewEngine(reader, &stubEnricher{}, store, nil, Config{QueueSize: 8}, nil)
	e.Start(context.Background())

	for i := 0; i < 4; i++ {
		require.True(t, e.Trigger())
	}
	<-reader.enter

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool { return !e.IsRunning() }, time.Second, time.Millisecond)

	close(reader.gate)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	require.Len(t, reader.enter, 0, "a queued press started a capture after Stop")
	require.Equal(t, []string{"clip-1"}, store.texts())
}

func TestEngine_Listen(t *testing.T) {
	store := &memStore{}
	e := NewEngine(&sequenceReader{}, &stubEnricher{}, store, nil, Config{}, nil)
	e.Start(context.Background())
	defer e.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	presses := make(chan struct{}, 2)
	e.Listen(ctx, presses)
	presses <- struct{}{}
	presses <- struct{}{}

	require.Eventually(t, func() bool { return len(store.texts()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StateIdle, StateCapturing))
	require.True(t, CanTransition(StateCapturing, StateAborted))
	require.False(t, CanTransition(StateIdle, StatePersisting))
	require.False(t, CanTransition(StateAborted, StateEnriching))
	require.Equal(t, "Persisting", StatePersisting.String())
}
