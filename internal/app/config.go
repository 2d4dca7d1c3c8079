package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mindmorass/spiegel/internal/capture"
	"github.com/mindmorass/spiegel/internal/clipboard"
	"github.com/mindmorass/spiegel/internal/enrich"
)

const (
	// ConfigFileName is the config file name (without extension)
	ConfigFileName = "config"

	// ConfigDir is the directory for config and data files
	ConfigDir = ".spiegel"

	// DefaultSettingsReload is the settings poll interval of a running agent
	DefaultSettingsReload = 2 * time.Second

	// EnvPrefix prefixes environment overrides, e.g. SPIEGEL_LLM_MODEL
	EnvPrefix = "SPIEGEL"
)

// Config holds application configuration
type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	LogLevel      string `mapstructure:"log_level"`
	Notifications bool   `mapstructure:"notifications"`

	// SettingsReload is how often the agent re-reads runtime settings
	// written by other processes; zero disables it
	SettingsReload time.Duration `mapstructure:"settings_reload"`

	LLM     LLMConfig     `mapstructure:"llm"`
	Capture CaptureConfig `mapstructure:"capture"`
	Export  ExportConfig  `mapstructure:"export"`
}

// LLMConfig configures the enrichment service
type LLMConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

// CaptureConfig tunes the clipboard protocol and the engine
type CaptureConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	Attempts    int           `mapstructure:"attempts"`
	PollDelay   time.Duration `mapstructure:"poll_delay"`
	QueueSize   int           `mapstructure:"queue_size"`
	Workers     int           `mapstructure:"workers"`
}

// ExportConfig selects where exports go
type ExportConfig struct {
	Backend  string `mapstructure:"backend"` // "local" or "s3"
	Location string `mapstructure:"location"`
	S3Region string `mapstructure:"s3_region"`
}

// ReaderConfig converts to the clipboard reader's config
func (c CaptureConfig) ReaderConfig() clipboard.ReaderConfig {
	return clipboard.ReaderConfig{
		SettleDelay: c.SettleDelay,
		Attempts:    c.Attempts,
		PollDelay:   c.PollDelay,
	}
}

// EngineConfig converts to the capture engine's config
func (c CaptureConfig) EngineConfig() capture.Config {
	return capture.Config{QueueSize: c.QueueSize, Workers: c.Workers}
}

// PipelineConfig converts to the enrichment pipeline's config
func (c LLMConfig) PipelineConfig() enrich.Config {
	return enrich.Config{
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		Timeout:   c.Timeout,
		MaxTokens: c.MaxTokens,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:        DefaultConfigDir(),
		LogLevel:       "info",
		Notifications:  true,
		SettingsReload: DefaultSettingsReload,
		LLM: LLMConfig{
			BaseURL:   enrich.DefaultBaseURL,
			Model:     enrich.DefaultModel,
			Timeout:   enrich.DefaultTimeout,
			MaxTokens: enrich.DefaultMaxTokens,
		},
		Capture: CaptureConfig{
			SettleDelay: clipboard.DefaultSettleDelay,
			Attempts:    clipboard.DefaultAttempts,
			PollDelay:   clipboard.DefaultPollDelay,
			QueueSize:   capture.DefaultQueueSize,
			Workers:     capture.DefaultWorkers,
		},
		Export: ExportConfig{
			Backend:  "local",
			Location: filepath.Join(DefaultConfigDir(), "exports"),
		},
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("notifications", d.Notifications)
	v.SetDefault("settings_reload", d.SettingsReload)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("capture.settle_delay", d.Capture.SettleDelay)
	v.SetDefault("capture.attempts", d.Capture.Attempts)
	v.SetDefault("capture.poll_delay", d.Capture.PollDelay)
	v.SetDefault("capture.queue_size", d.Capture.QueueSize)
	v.SetDefault("capture.workers", d.Capture.Workers)
	v.SetDefault("export.backend", d.Export.Backend)
	v.SetDefault("export.location", d.Export.Location)
	v.SetDefault("export.s3_region", d.Export.S3Region)
	return v
}

// LoadConfig reads path, or ~/.spiegel/config.yaml when path is empty.
// A missing file yields the defaults; SPIEGEL_* variables override both.
func LoadConfig(path string) (*Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.DataDir = expandHome(config.DataDir)
	config.Export.Location = expandHome(config.Export.Location)

	return &config, nil
}

// SaveConfig writes config to path, or ~/.spiegel/config.yaml
func SaveConfig(config *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	v := viper.New()
	v.Set("data_dir", config.DataDir)
	v.Set("log_level", config.LogLevel)
	v.Set("notifications", config.Notifications)
	v.Set("settings_reload", config.SettingsReload.String())
	v.Set("llm.base_url", config.LLM.BaseURL)
	v.Set("llm.model", config.LLM.Model)
	v.Set("llm.timeout", config.LLM.Timeout.String())
	v.Set("llm.max_tokens", config.LLM.MaxTokens)
	v.Set("capture.settle_delay", config.Capture.SettleDelay.String())
	v.Set("capture.attempts", config.Capture.Attempts)
	v.Set("capture.poll_delay", config.Capture.PollDelay.String())
	v.Set("capture.queue_size", config.Capture.QueueSize)
	v.Set("capture.workers", config.Capture.Workers)
	v.Set("export.backend", config.Export.Backend)
	v.Set("export.location", config.Export.Location)
	v.Set("export.s3_region", config.Export.S3Region)

	return v.WriteConfigAs(path)
}

// DefaultConfigPath is ~/.spiegel/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), ConfigFileName+".yaml")
}

// DefaultConfigDir is ~/.spiegel
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ConfigDir)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
