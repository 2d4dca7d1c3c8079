// Package enrich asks a chat completions service to categorize, tag and
// summarize captures. It never fails: every service problem degrades to a
// fixed fallback value.
package enrich

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mindmorass/spiegel/internal/clipboard"
	"github.com/mindmorass/spiegel/internal/settings"
)

// Fallback values
const (
	FallbackTextCategory  = "other"
	FallbackTextTag       = "uncategorized"
	FallbackImageCategory = "image"
	FallbackImageTag      = "screenshot"
	NoSummary             = "No summary available"
)

// Defaults
const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "gpt-4o"
	DefaultTimeout   = 30 * time.Second
	DefaultMaxTokens = 100
)

// Result is the enrichment of one capture. Summary is nil when no summary was
// attempted. Degraded is set when any fallback value was used.
type Result struct {
	Category string
	Tags     []string
	Summary  *string
	Degraded bool
}

// Config for the pipeline
type Config struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// Pipeline enriches captures
type Pipeline struct {
	cfg      Config
	settings SettingsReader
	logger   *slog.Logger
}

// NewPipeline creates a pipeline. The credential and model override are read
// from s on every call so changes apply to the next capture.
func NewPipeline(cfg Config, s SettingsReader, logger *slog.Logger) *Pipeline {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, settings: s, logger: logger}
}

// Enrich categorizes the capture and, for images and URLs, summarizes it.
// Both requests run concurrently.
func (p *Pipeline) Enrich(ctx context.Context, c clipboard.Capture) Result {
	client := NewClient(p.cfg.BaseURL, resolveAPIKey(p.settings), p.cfg.Timeout, p.logger)
	model := p.model()

	var (
		wg       sync.WaitGroup
		category string
		tags     []string
		catOK    bool
		summary  *string
		sumOK    = true
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		category, tags, catOK = p.categorize(ctx, client, model, c)
	}()

	if wantsSummary(c) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var s string
			s, sumOK = p.summarize(ctx, client, model, c)
			summary = &s
		}()
	}

	wg.Wait()

	return Result{
		Category: category,
		Tags:     tags,
		Summary:  summary,
		Degraded: !catOK || !sumOK,
	}
}

func (p *Pipeline) model() string {
	if p.settings != nil {
		if m, ok := p.settings.Get(settings.KeyLLMModel); ok && m != "" {
			return m
		}
	}
	return p.cfg.Model
}

func wantsSummary(c clipboard.Capture) bool {
	switch c.Kind() {
	case clipboard.KindImage:
		return true
	case clipboard.KindText:
		text, _ := c.Text()
		return IsURL(text)
	default:
		return false
	}
}

func (p *Pipeline) categorize(ctx context.Context, client *Client, model string, c clipboard.Capture) (string, []string, bool) {
	fallbackCategory, fallbackTag := FallbackTextCategory, FallbackTextTag
	if c.Kind() == clipboard.KindImage {
		fallbackCategory, fallbackTag = FallbackImageCategory, FallbackImageTag
	}

	reply, err := client.Complete(ctx, ChatRequest{
		Model:     model,
		Messages:  categorizeMessages(c),
		MaxTokens: p.cfg.MaxTokens,
	})
	if err != nil {
		p.logger.Warn("categorization failed, using fallback", "error", err)
		return fallbackCategory, []string{fallbackTag}, false
	}

	category, tags, err := parseCategory(reply)
	if err != nil {
		p.logger.Warn("categorization reply unusable, using fallback", "reply", compactJSON(reply))
		return fallbackCategory, []string{fallbackTag}, false
	}
	if len(tags) == 0 {
		return category, []string{fallbackTag}, false
	}

	p.logger.Debug("categorized", "category", category, "tags", tags)
	return category, tags, true
}

func (p *Pipeline) summarize(ctx context.Context, client *Client, model string, c clipboard.Capture) (string, bool) {
	reply, err := client.Complete(ctx, ChatRequest{
		Model:     model,
		Messages:  summarizeMessages(c),
		MaxTokens: p.cfg.MaxTokens,
	})
	if err != nil {
		p.logger.Warn("summarization failed", "error", err)
		return NoSummary, false
	}

	summary := strings.TrimSpace(reply)
	if summary == "" {
		return NoSummary, false
	}
	return summary, true
}
