// Package statestore persists the global routing document with rotating
// backups and corruption recovery. Every component that needs the shared
// state receives an explicit *Store handle; the handle owns the file path
// and the backup policy.
package statestore

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	coreerrors "github.com/adalundhe/fable/core/errors"
)

// Store reads and writes the state document at a fixed path. Writes rotate
// the backup slots before touching the primary, so a crash at any point
// leaves either the old primary or its most recent backup intact.
type Store struct {
	path        string
	backupCount int
	logger      *slog.Logger
	mu          sync.Mutex
}

// New creates a store for the document at path keeping backupCount rotating
// backup slots. A nil logger falls back to slog.Default().
func New(path string, backupCount int, logger *slog.Logger) *Store {
	if backupCount < 1 {
		backupCount = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		path:        path,
		backupCount: backupCount,
		logger:      logger,
	}
}

// Path returns the primary document path.
func (s *Store) Path() string {
	return s.path
}

// BackupCount returns the number of backup slots.
func (s *Store) BackupCount() int {
	return s.backupCount
}

// BackupPath returns the path for a backup slot. Slot 1 is the most recent.
func (s *Store) BackupPath(slot int) string {
	return fmt.Sprintf("%s.bak.%d", s.path, slot)
}

// Read loads the primary document. On parse failure it scans backup slots
// from slot 1 upward and returns the first that parses; when nothing
// parses the error kind is StateCorrupt. A missing primary with no
// backups is first run and yields the default document.
func (s *Store) Read() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if doc := s.readFirstBackup(); doc != nil {
			s.logger.Warn("state primary missing, recovered from backup", "path", s.path)
			return doc, nil
		}
		return DefaultDocument(), nil
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindStateCorrupt, "read state", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err == nil {
		return &doc, nil
	}

	if doc := s.readFirstBackup(); doc != nil {
		s.logger.Warn("state primary corrupt, recovered from backup", "path", s.path)
		return doc, nil
	}

	return nil, coreerrors.Newf(coreerrors.KindStateCorrupt,
		"state document %s and all %d backups unreadable", s.path, s.backupCount)
}

func (s *Store) readFirstBackup() *Document {
	for slot := 1; slot <= s.backupCount; slot++ {
		doc, err := s.readBackupSlot(slot)
		if err != nil {
			continue
		}
		return doc
	}
	return nil
}

func (s *Store) readBackupSlot(slot int) (*Document, error) {
	data, err := os.ReadFile(s.BackupPath(slot))
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Write persists the document. The backup slots rotate strictly before the
// primary is replaced: slot k receives slot k-1 for k = N down to 2, then
// slot 1 receives a copy of the current primary, then the new document
// lands via write-temp-then-rename. Any failure surfaces as StateWrite.
func (s *Store) Write(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return coreerrors.Wrap(coreerrors.KindStateWrite, "create state dir", err)
	}

	if err := s.rotateBackups(); err != nil {
		return coreerrors.Wrap(coreerrors.KindStateWrite, "rotate backups", err)
	}

	if err := s.replacePrimary(doc); err != nil {
		return coreerrors.Wrap(coreerrors.KindStateWrite, "replace state", err)
	}

	return nil
}

func (s *Store) rotateBackups() error {
	for slot := s.backupCount; slot >= 2; slot-- {
		from := s.BackupPath(slot - 1)
		to := s.BackupPath(slot)
		if err := os.Rename(from, to); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	// Slot 1 is copied, not renamed, so the primary stays readable until
	// the atomic swap below.
	return s.copyPrimaryToSlot1()
}

func (s *Store) copyPrimaryToSlot1() error {
	src, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(s.BackupPath(1))
	if err != nil {
		return err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return err
	}
	return dest.Sync()
}

func (s *Store) replacePrimary(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}

// Restore rolls the primary back to the given backup slot. The backup is
// validated before anything is committed; the restore itself goes through
// Write so the outgoing primary is preserved in slot 1.
func (s *Store) Restore(slot int) (*Document, error) {
	if slot < 1 || slot > s.backupCount {
		return nil, coreerrors.Newf(coreerrors.KindValidation,
			"backup slot %d out of range 1..%d", slot, s.backupCount)
	}

	s.mu.Lock()
	doc, err := s.readBackupSlot(slot)
	s.mu.Unlock()
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindNotFound,
			fmt.Sprintf("backup slot %d", slot), err)
	}

	if err := s.Write(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// BackupInfo describes one backup slot for listing.
type BackupInfo struct {
	Slot    int
	Path    string
	Size    int64
	ModTime int64
	Valid   bool
}

// ListBackups reports the state of every backup slot, including whether
// each one currently parses.
func (s *Store) ListBackups() []BackupInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]BackupInfo, 0, s.backupCount)
	for slot := 1; slot <= s.backupCount; slot++ {
		path := s.BackupPath(slot)
		info := BackupInfo{Slot: slot, Path: path}

		if stat, err := os.Stat(path); err == nil {
			info.Size = stat.Size()
			info.ModTime = stat.ModTime().Unix()
			_, parseErr := s.readBackupSlot(slot)
			info.Valid = parseErr == nil
		}

		infos = append(infos, info)
	}

	return infos
}

// Update reads the document, applies fn, and writes the result back.
func (s *Store) Update(fn func(*Document) error) (*Document, error) {
	doc, err := s.Read()
	if err != nil {
		return nil, err
	}

	if err := fn(doc); err != nil {
		return nil, err
	}

	if err := s.Write(doc); err != nil {
		return nil, err
	}

	return doc, nil
}
