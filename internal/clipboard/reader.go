package clipboard

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Reader defaults
const (
	DefaultSettleDelay = 120 * time.Millisecond
	DefaultAttempts    = 5
	DefaultPollDelay   = 50 * time.Millisecond
)

// ReaderConfig controls the copy-then-poll protocol
type ReaderConfig struct {
	// SettleDelay is waited after the copy simulation before the first read
	SettleDelay time.Duration

	// Attempts is the maximum number of clipboard reads
	Attempts int

	// PollDelay separates consecutive reads
	PollDelay time.Duration
}

// DefaultReaderConfig returns the empirically tuned timings
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		SettleDelay: DefaultSettleDelay,
		Attempts:    DefaultAttempts,
		PollDelay:   DefaultPollDelay,
	}
}

// Reader captures the current selection through the clipboard
type Reader struct {
	source Source
	copier Copier
	cfg    ReaderConfig
	logger *slog.Logger
}

// NewReader creates a reader. A nil copier skips the copy simulation.
func NewReader(source Source, copier Copier, cfg ReaderConfig, logger *slog.Logger) *Reader {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		source: source,
		copier: copier,
		cfg:    cfg,
		logger: logger,
	}
}

// Capture simulates a copy, waits for it to land and polls the clipboard.
//
// The first successful read only establishes a baseline: a later read is
// accepted once its size differs from the previous successful read, since an
// unchanged size usually means the buffer still holds the old content. The
// final attempt is accepted whatever its size.
func (r *Reader) Capture(ctx context.Context) (Capture, error) {
	if r.copier != nil {
		if err := r.copier.Copy(); err != nil {
			r.logger.Warn("copy simulation failed", "error", err)
		}
	}

	if err := sleep(ctx, r.cfg.SettleDelay); err != nil {
		return Capture{}, err
	}

	var (
		last     Capture
		lastSize int
		haveLast bool
	)

	for i := 0; i < r.cfg.Attempts; i++ {
		final := i == r.cfg.Attempts-1

		c, err := r.readOnce()
		switch {
		case errors.Is(err, ErrMalformedImageBuffer):
			return Capture{}, err
		case err != nil:
			r.logger.Debug("clipboard read empty", "attempt", i+1, "error", err)
		default:
			size := c.Size()
			if final || (haveLast && size != lastSize) {
				return c, nil
			}
			last, lastSize, haveLast = c, size, true
		}

		if !final {
			if err := sleep(ctx, r.cfg.PollDelay); err != nil {
				return Capture{}, err
			}
		}
	}

	if haveLast {
		return last, nil
	}
	return Capture{}, ErrClipboardUnavailable
}

// readOnce reads text, falling back to an image
func (r *Reader) readOnce() (Capture, error) {
	text, textErr := r.source.ReadText()
	if textErr == nil && text != "" {
		return NewText(text), nil
	}

	raw, err := r.source.ReadImage()
	if err != nil {
		if textErr != nil && !errors.Is(textErr, ErrEmpty) {
			return Capture{}, errors.Join(textErr, err)
		}
		return Capture{}, err
	}
	return NormalizeImage(raw)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
