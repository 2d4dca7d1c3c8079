// Package capture runs the hotkey-driven cycle: read the selection, enrich
// it, store it and tell listeners.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mindmorass/spiegel/internal/clipboard"
	"github.com/mindmorass/spiegel/internal/enrich"
	"github.com/mindmorass/spiegel/internal/events"
	"github.com/mindmorass/spiegel/internal/storage"
)

// ErrPersistence wraps store failures at the end of a cycle
var ErrPersistence = errors.New("persisting capture failed")

// Engine defaults
const (
	DefaultQueueSize = 8
	DefaultWorkers   = 1
)

// Reader produces one capture per call
type Reader interface {
	Capture(ctx context.Context) (clipboard.Capture, error)
}

// Enricher never fails; degraded results are still results
type Enricher interface {
	Enrich(ctx context.Context, c clipboard.Capture) enrich.Result
}

// Store persists enriched captures
type Store interface {
	Create(ctx context.Context, r storage.NewRecord) (storage.Record, error)
}

// StateHandler is called on every cycle state change
type StateHandler func(cycleID string, state State)

// Config sizes the engine
type Config struct {
	// QueueSize bounds pending triggers; extra presses are dropped
	QueueSize int

	// Workers is how many cycles enrich and persist at once. With one worker
	// records are stored in press order.
	Workers int
}

// Stats counts what the engine did since it was created
type Stats struct {
	Triggered int64
	Dropped   int64
	Aborted   int64
	Saved     int64
	Failed    int64
}

// Engine owns the trigger queue and the cycle goroutines
type Engine struct {
	reader   Reader
	enricher Enricher
	store    Store
	emitter  events.Emitter
	cfg      Config
	logger   *slog.Logger

	triggers chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup

	onStateChange StateHandler
	lastRecord    storage.Record
	lastError     error

	running bool
	paused  bool
	mu      sync.Mutex

	triggered atomic.Int64
	dropped   atomic.Int64
	aborted   atomic.Int64
	saved     atomic.Int64
	failed    atomic.Int64
}

type job struct {
	id      string
	capture clipboard.Capture
}

// NewEngine creates a stopped engine
func NewEngine(reader Reader, enricher Enricher, store Store, emitter events.Emitter, cfg Config, logger *slog.Logger) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if emitter == nil {
		emitter = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		reader:   reader,
		enricher: enricher,
		store:    store,
		emitter:  emitter,
		cfg:      cfg,
		logger:   logger,
	}
}

// OnStateChange sets the state change handler
func (e *Engine) OnStateChange(handler StateHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStateChange = handler
}

// Start launches the capture goroutine and the workers. ctx bounds captures
// and enrichment; persistence of a cycle that got that far still completes.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.paused = false
	e.triggers = make(chan struct{}, e.cfg.QueueSize)
	e.stopChan = make(chan struct{})
	triggers, stop := e.triggers, e.stopChan
	e.mu.Unlock()

	jobs := make(chan job, e.cfg.QueueSize)

	e.wg.Add(1)
	go e.captureLoop(ctx, triggers, stop, jobs)

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, jobs)
	}

	e.logger.Info("capture engine started", "workers", e.cfg.Workers, "queue", e.cfg.QueueSize)
}

// Stop refuses new triggers, drops queued ones and waits for cycles that
// already captured something to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("capture engine stopped")
}

// Trigger queues one capture. It never blocks; false means the press was
// dropped because the engine is stopped, paused or saturated.
func (e *Engine) Trigger() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || e.paused {
		e.logger.Debug("trigger ignored", "running", e.running, "paused", e.paused)
		return false
	}

	select {
	case e.triggers <- struct{}{}:
		e.triggered.Add(1)
		return true
	default:
		e.dropped.Add(1)
		e.logger.Warn("capture queue full, trigger dropped", "queue", e.cfg.QueueSize)
		return false
	}
}

// Listen forwards presses from src until ctx ends or src closes
func (e *Engine) Listen(ctx context.Context, src <-chan struct{}) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-src:
				if !ok {
					return
				}
				e.Trigger()
			}
		}
	}()
}

// Pause drops triggers until Resume
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	e.logger.Info("capture paused")
}

// Resume accepts triggers again
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.logger.Info("capture resumed")
}

// IsPaused returns true if triggers are being dropped
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// IsRunning returns true between Start and Stop
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// GetLastRecord returns the most recently saved record
func (e *Engine) GetLastRecord() (storage.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRecord, e.lastRecord.ID != 0
}

// GetLastError returns the last capture or persistence error
func (e *Engine) GetLastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// Stats returns a snapshot of the counters
func (e *Engine) Stats() Stats {
	return Stats{
		Triggered: e.triggered.Load(),
		Dropped:   e.dropped.Load(),
		Aborted:   e.aborted.Load(),
		Saved:     e.saved.Load(),
		Failed:    e.failed.Load(),
	}
}

// captureLoop reads the clipboard once per trigger, in press order
func (e *Engine) captureLoop(ctx context.Context, triggers <-chan struct{}, stop <-chan struct{}, jobs chan<- job) {
	defer e.wg.Done()
	defer close(jobs)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-triggers:
		}

		// a closed stop wins over presses still queued
		select {
		case <-stop:
			return
		default:
		}

		c := e.newCycle()
		c.mustAdvance(StateCapturing)

		captured, err := e.reader.Capture(ctx)
		if err != nil {
			e.aborted.Add(1)
			e.setLastError(err)
			e.logger.Warn("capture aborted", "cycle", c.id, "error", err)
			c.mustAdvance(StateAborted)
			c.mustAdvance(StateIdle)
			continue
		}

		e.logger.Debug("captured", "cycle", c.id, "kind", captured.Kind(), "size", captured.Size())

		// workers drain jobs until it is closed, so a captured cycle is
		// always handed over
		jobs <- job{id: c.id, capture: captured}
	}
}

func (e *Engine) worker(ctx context.Context, jobs <-chan job) {
	defer e.wg.Done()
	for j := range jobs {
		e.process(ctx, j)
	}
}

func (e *Engine) process(ctx context.Context, j job) {
	c := &cycle{engine: e, id: j.id, state: StateCapturing}
	start := time.Now()

	c.mustAdvance(StateEnriching)
	res := e.enricher.Enrich(ctx, j.capture)
	if res.Degraded {
		e.logger.Info("enrichment degraded", "cycle", c.id, "category", res.Category)
	}

	c.mustAdvance(StatePersisting)
	rec, err := e.store.Create(context.WithoutCancel(ctx), storage.NewRecord{
		Capture:  j.capture,
		Category: res.Category,
		Summary:  res.Summary,
		Tags:     res.Tags,
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrPersistence, err)
		e.failed.Add(1)
		e.setLastError(err)
		e.logger.Error("capture not saved", "cycle", c.id, "error", err)
		c.mustAdvance(StateIdle)
		e.emitter.Emit(events.Event{Kind: events.KindFailed, Err: err})
		return
	}

	e.saved.Add(1)
	e.mu.Lock()
	e.lastRecord = rec
	e.lastError = nil
	e.mu.Unlock()

	e.logger.Info("capture saved",
		"cycle", c.id,
		"id", rec.ID,
		"category", rec.Category,
		"tags", rec.Tags,
		"duration", time.Since(start))
	c.mustAdvance(StateIdle)
	e.emitter.Emit(events.Event{Kind: events.KindSaved, RecordID: rec.ID})
}

func (e *Engine) setLastError(err error) {
	e.mu.Lock()
	e.lastError = err
	e.mu.Unlock()
}

func (e *Engine) newCycle() *cycle {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &cycle{engine: e, id: id.String(), state: StateIdle}
}

func (e *Engine) notifyState(id string, s State) {
	e.mu.Lock()
	handler := e.onStateChange
	e.mu.Unlock()

	if handler != nil {
		handler(id, s)
	}
}
