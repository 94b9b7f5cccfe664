// Package session manages the genre-scoped session tree: creation with a
// fixed scaffold, archival under a date prefix, partial-name resolution,
// and listing. The tree's one hard invariant is at most one active
// session per genre; Create enforces it by archiving the incumbent first.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	coreerrors "github.com/adalundhe/fable/core/errors"
	"github.com/adalundhe/fable/core/storage"
)

// Options configures a Manager.
type Options struct {
	// ScaffoldDirs are created inside every new session directory.
	ScaffoldDirs []string

	// SceneDir is the scaffold subdirectory whose files count as scenes.
	SceneDir string

	// Logger receives lifecycle events. Nil uses slog.Default().
	Logger *slog.Logger
}

// Manager owns session lifecycle over a workspace's sessions tree.
type Manager struct {
	ws           *storage.Workspace
	scaffoldDirs []string
	sceneDir     string
	logger       *slog.Logger
	mu           sync.Mutex
}

// NewManager creates a session manager for the workspace.
func NewManager(ws *storage.Workspace, opts Options) *Manager {
	scaffold := opts.ScaffoldDirs
	if len(scaffold) == 0 {
		scaffold = []string{"scenes", "characters", "notes"}
	}
	sceneDir := opts.SceneDir
	if sceneDir == "" {
		sceneDir = "scenes"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		ws:           ws,
		scaffoldDirs: scaffold,
		sceneDir:     sceneDir,
		logger:       logger,
	}
}

// CharactersDir returns a session's character directory.
func (m *Manager) CharactersDir(sess *Session) string {
	return filepath.Join(sess.Path, "characters")
}

// Create materializes a new active session for the genre. Any existing
// active session in the genre is archived first, preserving the
// at-most-one-active invariant.
func (m *Manager) Create(genre, name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dirName := normalizeName(name)
	if genre == "" || dirName == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "genre and session name are required")
	}
	if archivedName(dirName) {
		return nil, coreerrors.Newf(coreerrors.KindValidation,
			"session name %q starts with a date prefix reserved for archives", name)
	}

	if err := m.archiveActiveLocked(genre); err != nil {
		return nil, err
	}

	path := m.ws.SessionDir(genre, dirName)
	if _, err := os.Stat(path); err == nil {
		return nil, coreerrors.Newf(coreerrors.KindConflict,
			"session %q already exists in genre %q", dirName, genre)
	}

	for _, sub := range m.scaffoldDirs {
		if err := storage.EnsureDir(filepath.Join(path, sub)); err != nil {
			return nil, fmt.Errorf("scaffold session: %w", err)
		}
	}

	desc := Descriptor{
		Name:      dirName,
		Genre:     genre,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := writeDescriptor(path, &desc); err != nil {
		return nil, err
	}

	m.logger.Info("session created", "genre", genre, "name", dirName)

	return &Session{Descriptor: desc, Path: path}, nil
}

// archiveActiveLocked archives whatever active session the genre holds.
func (m *Manager) archiveActiveLocked(genre string) error {
	sessions, err := m.listGenre(genre)
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		if sess.Status != StatusActive {
			continue
		}
		if _, err := m.archiveLocked(sess); err != nil {
			return err
		}
	}

	return nil
}

// Archive closes a session out under a date-prefixed directory name.
// Archiving an already-archived session is a successful no-op.
func (m *Manager) Archive(sess *Session) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.archiveLocked(sess)
}

func (m *Manager) archiveLocked(sess *Session) (*Session, error) {
	if sess.Status == StatusArchived {
		return sess, nil
	}

	base := filepath.Base(sess.Path)
	prefix := time.Now().UTC().Format("2006-01-02")
	newBase := prefix + "-" + base

	parent := filepath.Dir(sess.Path)
	newPath := filepath.Join(parent, newBase)
	for suffix := 2; ; suffix++ {
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			break
		}
		newPath = filepath.Join(parent, fmt.Sprintf("%s-%d", newBase, suffix))
	}

	if err := os.Rename(sess.Path, newPath); err != nil {
		return nil, fmt.Errorf("archive rename: %w", err)
	}

	now := time.Now().UTC()
	desc := sess.Descriptor
	desc.Status = StatusArchived
	desc.ArchivedAt = &now
	if err := writeDescriptor(newPath, &desc); err != nil {
		return nil, err
	}

	m.logger.Info("session archived", "genre", desc.Genre, "name", desc.Name, "path", newPath)

	archived := *sess
	archived.Descriptor = desc
	archived.Path = newPath
	return &archived, nil
}

// Resolve finds a session by case-insensitive substring match across all
// genres and statuses. Both the bare name and the on-disk directory name
// are matched, so archived sessions resolve by their date-prefixed form
// too. No match is NotFound; more than one is AmbiguousMatch carrying the
// candidate names.
func (m *Manager) Resolve(partial string) (*Session, error) {
	if strings.TrimSpace(partial) == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "session name fragment is required")
	}

	sessions, err := m.List("")
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(partial)
	var matches []*Session
	for _, sess := range sessions {
		dirBase := strings.ToLower(filepath.Base(sess.Path))
		if strings.Contains(strings.ToLower(sess.Name), needle) ||
			strings.Contains(dirBase, needle) {
			matches = append(matches, sess)
		}
	}

	switch len(matches) {
	case 0:
		return nil, coreerrors.Newf(coreerrors.KindNotFound, "no session matches %q", partial)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, sess := range matches {
			names[i] = sess.Genre + "/" + filepath.Base(sess.Path)
		}
		return nil, coreerrors.Newf(coreerrors.KindAmbiguousMatch,
			"%d sessions match %q", len(matches), partial).
			WithContext("candidates", strings.Join(names, ", "))
	}
}

// List enumerates sessions. The genre filter accepts a glob pattern; an
// empty filter lists every genre.
func (m *Manager) List(genreFilter string) ([]*Session, error) {
	var matcher glob.Glob
	if genreFilter != "" {
		g, err := glob.Compile(genreFilter)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindValidation, "genre filter", err)
		}
		matcher = g
	}

	entries, err := os.ReadDir(m.ws.Sessions())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions tree: %w", err)
	}

	var all []*Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		genre := entry.Name()
		if matcher != nil && !matcher.Match(genre) {
			continue
		}

		sessions, err := m.listGenre(genre)
		if err != nil {
			return nil, err
		}
		all = append(all, sessions...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Genre != all[j].Genre {
			return all[i].Genre < all[j].Genre
		}
		return all[i].Name < all[j].Name
	})

	return all, nil
}

func (m *Manager) listGenre(genre string) ([]*Session, error) {
	genreDir := m.ws.GenreDir(genre)
	entries, err := os.ReadDir(genreDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read genre %s: %w", genre, err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sessions = append(sessions, m.loadSession(genre, entry.Name()))
	}

	return sessions, nil
}

// loadSession reads a session directory, inferring legacy metadata where
// no descriptor exists: the date prefix marks an archive.
func (m *Manager) loadSession(genre, dirName string) *Session {
	path := m.ws.SessionDir(genre, dirName)

	sess := &Session{Path: path}
	if desc, err := readDescriptor(path); err == nil {
		sess.Descriptor = *desc
	} else {
		sess.Descriptor = Descriptor{
			Name:   bareName(dirName),
			Genre:  genre,
			Status: inferStatus(dirName),
		}
	}

	sess.SceneCount = countFiles(filepath.Join(path, m.sceneDir))
	return sess
}

func inferStatus(dirName string) Status {
	if archivedName(dirName) {
		return StatusArchived
	}
	return StatusActive
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}
	return count
}

func writeDescriptor(dir string, desc *Descriptor) error {
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize descriptor: %w", err)
	}

	path := filepath.Join(dir, DescriptorName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename descriptor: %w", err)
	}

	return nil
}

func readDescriptor(dir string) (*Descriptor, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptorName))
	if err != nil {
		return nil, err
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}
