package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// LockFile guards the export directory while a file is written
	LockFile = ".spiegel-export.lock"

	// LockTimeout is how long a lock is valid
	LockTimeout = 10 * time.Second

	// FilePermissions for export files
	FilePermissions = 0600

	// DirPermissions for the export directory
	DirPermissions = 0700
)

// LockInfo represents lock file contents
type LockInfo struct {
	Holder     string    `json:"holder"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LocalBackend writes exports into a directory
type LocalBackend struct {
	basePath string
}

// NewLocalBackend creates a new local filesystem backend
func NewLocalBackend(basePath string) *LocalBackend {
	return &LocalBackend{basePath: basePath}
}

// Type returns the backend type
func (b *LocalBackend) Type() BackendType {
	return BackendLocal
}

// GetLocation returns the export directory
func (b *LocalBackend) GetLocation() string {
	return b.basePath
}

// SetLocation updates the export directory. It must be absolute.
func (b *LocalBackend) SetLocation(location string) error {
	if location == "" {
		b.basePath = ""
		return nil
	}

	cleanPath := filepath.Clean(location)
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path must be absolute: %s", location)
	}

	b.basePath = cleanPath
	return nil
}

func (b *LocalBackend) filePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(b.basePath, name), nil
}

func (b *LocalBackend) lockPath() string {
	return filepath.Join(b.basePath, LockFile)
}

// Init creates the export directory if it doesn't exist
func (b *LocalBackend) Init(ctx context.Context) error {
	if b.basePath == "" {
		return ErrNotConfigured
	}
	if err := os.MkdirAll(b.basePath, DirPermissions); err != nil {
		return err
	}
	b.cleanStaleLocks()
	return nil
}

// Close releases resources (no-op for local backend)
func (b *LocalBackend) Close() error {
	return nil
}

// Write stores an export atomically under the directory lock
func (b *LocalBackend) Write(ctx context.Context, name string, data []byte) error {
	if b.basePath == "" {
		return ErrNotConfigured
	}

	path, err := b.filePath(name)
	if err != nil {
		return err
	}

	if err := b.Init(ctx); err != nil {
		return err
	}

	if err := b.acquireLock(); err != nil {
		return err
	}
	defer b.releaseLock()

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, FilePermissions); err != nil {
		return fmt.Errorf("write temp file failed: %w", err)
	}

	// Rename is atomic on POSIX
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename failed: %w", err)
	}

	return nil
}

// Read retrieves a named export
func (b *LocalBackend) Read(ctx context.Context, name string) ([]byte, error) {
	if b.basePath == "" {
		return nil, ErrNotConfigured
	}

	path, err := b.filePath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return data, nil
}

// Exists returns true if the named export exists
func (b *LocalBackend) Exists(ctx context.Context, name string) bool {
	path, err := b.filePath(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// acquireLock creates the lock file exclusively, taking over expired or
// unreadable locks
func (b *LocalBackend) acquireLock() error {
	lockPath := b.lockPath()
	hostname, _ := os.Hostname()

	lockInfo := LockInfo{
		Holder:     hostname,
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
		ExpiresAt:  time.Now().Add(LockTimeout),
	}

	data, err := json.Marshal(lockInfo)
	if err != nil {
		return err
	}

	if err := b.createLock(data); err == nil || err != ErrLocked {
		return err
	}

	existingData, readErr := os.ReadFile(lockPath)
	if readErr != nil {
		os.Remove(lockPath)
		return b.createLock(data)
	}

	var existing LockInfo
	if json.Unmarshal(existingData, &existing) != nil {
		os.Remove(lockPath)
		return b.createLock(data)
	}

	if existing.Holder == hostname && existing.PID == os.Getpid() {
		return os.WriteFile(lockPath, data, FilePermissions)
	}

	if time.Now().After(existing.ExpiresAt) {
		os.Remove(lockPath)
		return b.createLock(data)
	}

	return ErrLocked
}

func (b *LocalBackend) createLock(data []byte) error {
	f, err := os.OpenFile(b.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, FilePermissions)
	if err != nil {
		if os.IsExist(err) {
			return ErrLocked
		}
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (b *LocalBackend) releaseLock() {
	os.Remove(b.lockPath())
}

func (b *LocalBackend) cleanStaleLocks() {
	data, err := os.ReadFile(b.lockPath())
	if err != nil {
		return
	}

	var lockInfo LockInfo
	if json.Unmarshal(data, &lockInfo) != nil {
		return
	}

	if time.Now().After(lockInfo.ExpiresAt) {
		os.Remove(b.lockPath())
	}
}
