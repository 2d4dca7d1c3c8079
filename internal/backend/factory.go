package backend

import (
	"fmt"
)

// New creates a backend for cfg and applies its location
func New(cfg *Config) (Backend, error) {
	if cfg == nil {
		cfg = &Config{Type: BackendLocal}
	}

	var b Backend
	switch cfg.Type {
	case BackendLocal, "":
		b = NewLocalBackend("")
	case BackendS3:
		b = NewS3Backend("", "", cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}

	if err := b.SetLocation(cfg.Location); err != nil {
		return nil, err
	}
	return b, nil
}
