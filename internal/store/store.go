// Package store persists the booking list as JSON with rotating backups.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
)

// ErrInvalidBooking marks a restored booking that violates the date invariant.
var ErrInvalidBooking = errors.New("store: invalid booking")

const defaultBackups = 3

// document is the on-disk shape.
type document struct {
	Version  int             `json:"version"`
	Bookings []model.Booking `json:"bookings"`
}

// FileStore keeps bookings in a single JSON file. Before each write the
// current file is rotated to path.1, path.1 to path.2 and so on.
type FileStore struct {
	path    string
	backups int
	mu      sync.Mutex
}

// NewFileStore returns a store at path keeping up to backups old versions.
// backups <= 0 selects the default.
func NewFileStore(path string, backups int) *FileStore {
	if backups <= 0 {
		backups = defaultBackups
	}
	return &FileStore{path: path, backups: backups}
}

func (s *FileStore) Path() string { return s.path }

// Load restores bookings. A missing file yields an empty list. If the main file
// is unreadable the newest readable backup is used instead. Bookings failing
// validation are dropped and logged.
func (s *FileStore) Load() ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := readFile(s.path)
	if err == nil {
		return bookings, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Booking{}, nil
	}

	appLog.Error("store: primary file unreadable, trying backups", err, "path", s.path)
	for i := 1; i <= s.backups; i++ {
		p := backupPath(s.path, i)
		bookings, berr := readFile(p)
		if berr != nil {
			continue
		}
		appLog.Info("store: restored from backup", "path", p, "bookings", len(bookings))
		return bookings, nil
	}
	return nil, fmt.Errorf("store: load %s: %w", s.path, err)
}

// Save sorts bookings, rotates backups and writes atomically with 0600 perms.
func (s *FileStore) Save(bookings []model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]model.Booking(nil), bookings...)
	model.SortBookings(sorted)

	data, err := json.MarshalIndent(document{Version: 1, Bookings: sorted}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}

	if err := s.rotate(); err != nil {
		appLog.Error("store: backup rotation failed", err, "path", s.path)
	}

	tmp, err := os.CreateTemp(dir, ".bookings-*.tmp")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("store: chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}

	appLog.Debug("store: saved", "path", s.path, "bookings", len(sorted))
	return nil
}

// rotate shifts path.(n-1) -> path.n ... path -> path.1. The primary file is
// copied, not moved, so a failed write never leaves us without a current file.
func (s *FileStore) rotate() error {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	for i := s.backups; i > 1; i-- {
		from := backupPath(s.path, i-1)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, backupPath(s.path, i)); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return os.WriteFile(backupPath(s.path, 1), data, 0o600)
}

func backupPath(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

func readFile(path string) ([]model.Booking, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return validate(doc.Bookings), nil
}

func validate(in []model.Booking) []model.Booking {
	out := make([]model.Booking, 0, len(in))
	for _, b := range in {
		if err := b.Validate(); err != nil {
			appLog.Error("store: rejecting restored booking", fmt.Errorf("%w: %v", ErrInvalidBooking, err), "id", b.ID)
			continue
		}
		b.FirstNight = model.DateOf(b.FirstNight)
		b.LastNight = model.DateOf(b.LastNight)
		out = append(out, b)
	}
	model.SortBookings(out)
	return out
}
