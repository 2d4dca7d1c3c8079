// Package backend writes record exports to a local directory or an S3 bucket.
package backend

import (
	"context"
	"errors"
)

// BackendType identifies the type of export backend
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendS3    BackendType = "s3"
)

// Common errors
var (
	ErrNotConfigured = errors.New("backend not configured")
	ErrNotFound      = errors.New("export not found")
	ErrLocked        = errors.New("export location is locked by another process")
	ErrInvalidName   = errors.New("invalid export name")
)

// Backend defines the interface for export destinations
type Backend interface {
	// Init validates the location and credentials
	Init(ctx context.Context) error

	// Write stores one named export, replacing any previous one
	Write(ctx context.Context, name string, data []byte) error

	// Read retrieves a named export
	Read(ctx context.Context, name string) ([]byte, error)

	// Exists returns true if the named export exists
	Exists(ctx context.Context, name string) bool

	// Close releases any resources held by the backend
	Close() error

	// Type returns the backend type
	Type() BackendType

	// GetLocation returns a human-readable location string
	GetLocation() string

	// SetLocation updates the backend location
	SetLocation(location string) error
}

// Config holds configuration for creating backends
type Config struct {
	Type     BackendType
	Location string // local: directory, s3: s3://bucket/prefix

	// S3-specific
	S3Region string
}
