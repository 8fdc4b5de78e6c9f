package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/roach88/giftswap/internal/exchange"
)

// FileStore keeps the canonical state file.
//
// Save writes to a uniquely named temporary file in the same directory and
// renames it over the canonical path, so readers and crashes only ever see
// the previous or the new complete file. FileStore does not serialize
// concurrent Save calls; Writer does.
type FileStore struct {
	path   string
	clock  exchange.Clock
	logger *slog.Logger

	// rename is os.Rename; tests swap it to simulate failures.
	rename func(oldpath, newpath string) error
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets the logger for load diagnostics.
func WithFileLogger(l *slog.Logger) FileOption {
	return func(s *FileStore) { s.logger = l }
}

// WithFileClock sets the clock used to default missing registration times.
func WithFileClock(c exchange.Clock) FileOption {
	return func(s *FileStore) { s.clock = c }
}

// NewFileStore creates a store for the state file at path.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:   path,
		clock:  exchange.SystemClock{},
		logger: slog.Default(),
		rename: os.Rename,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the canonical file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the canonical file.
//
// Returns (nil, nil) when the file does not exist. An unreadable or corrupt
// file is a startup error. Decoded state is passed through exchange.Sanitize
// so every registry invariant holds.
func (s *FileStore) Load() (*exchange.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, exchange.WrapError(exchange.KindStartup, "read state file "+s.path, err)
	}

	snap, report, err := Decode(data, s.clock.Now())
	if err != nil {
		return nil, exchange.WrapError(exchange.KindStartup, "parse state file "+s.path, err)
	}
	if report.Dropped > 0 || report.DefaultedTimestamp > 0 {
		s.logger.Warn("state file had invalid participant records",
			"path", s.path,
			"dropped", report.Dropped,
			"defaulted_registered_at", report.DefaultedTimestamp,
		)
	}

	clean, changed := exchange.Sanitize(snap)
	if changed {
		s.logger.Warn("state file violated exchange invariants, repaired on load",
			"path", s.path,
			"assignments_ready", clean.State.AssignmentsReady,
			"registration_open", clean.State.RegistrationOpen,
		)
	}
	return &clean, nil
}

// Save atomically replaces the canonical file with snap.
// On failure the temporary file is removed and the canonical file is left as it was.
func (s *FileStore) Save(snap exchange.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(s.path), uuid.NewString()))
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := s.rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}

	syncDir(dir)
	return nil
}

// writeFileSync creates path exclusively, writes data and fsyncs it.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the directory entry for the rename. Best effort: some
// filesystems do not support fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
