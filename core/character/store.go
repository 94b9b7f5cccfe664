// Package character implements the character-record store and its derived
// cast manifest. Records live as one JSON file per character inside a
// session, project, or library directory; the manifest is a fully
// recomputed projection over those files and self-heals whenever it
// diverges from them.
package character

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	coreerrors "github.com/adalundhe/fable/core/errors"
)

const defaultCacheSize = 128

// defaultStableSections are the section names copied by Promote when no
// override is configured. The session log is deliberately absent.
func defaultStableSections() []string {
	return []string{"identity", "appearance", "personality", "voice", "background"}
}

// Options configures a Store.
type Options struct {
	// CacheSize bounds the parsed-record cache. Zero uses the default.
	CacheSize int

	// StableSections overrides the section names copied by Promote.
	StableSections []string

	// Logger receives rebuild and recovery events. Nil uses slog.Default().
	Logger *slog.Logger
}

// Store provides CRUD over character records in arbitrary directories.
// Every mutation ends with a full manifest rebuild of the destination
// directory, so the index can never drift from the records for longer
// than one interrupted write, and List repairs even that.
type Store struct {
	stableSections []string
	logger         *slog.Logger
	cache          *lru.Cache[string, *Record]
	mu             sync.Mutex

	// Cache statistics for observability.
	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore creates a character store.
func NewStore(opts Options) *Store {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}

	stable := opts.StableSections
	if len(stable) == 0 {
		stable = defaultStableSections()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cache, _ := lru.New[string, *Record](size)

	return &Store{
		stableSections: stable,
		logger:         logger,
		cache:          cache,
	}
}

// CacheStats returns cache hit and miss counts.
func (s *Store) CacheStats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

func cacheKey(dir, slug string) string {
	return filepath.Join(dir, slug)
}

func recordPath(dir, slug string) string {
	return filepath.Join(dir, slug+".json")
}

// Create writes a new record into dir. The slug is derived from the name;
// an existing record with the same slug fails with Conflict.
func (s *Store) Create(dir, name string, meta *MetadataPatch, sections map[string]string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := NewRecord(name)
	if err != nil {
		return nil, err
	}
	if err := rec.Apply(meta, sections); err != nil {
		return nil, err
	}

	slug := rec.Slug()
	if _, err := os.Stat(recordPath(dir, slug)); err == nil {
		return nil, coreerrors.Newf(coreerrors.KindConflict,
			"character %q already exists in %s", slug, dir)
	}

	if err := s.writeRecord(dir, slug, rec); err != nil {
		return nil, err
	}

	return rec.Clone(), nil
}

// Read loads a record by slug.
func (s *Store) Read(dir, slug string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRecord(dir, slug)
}

func (s *Store) readRecord(dir, slug string) (*Record, error) {
	key := cacheKey(dir, slug)
	if rec, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return rec.Clone(), nil
	}
	s.misses.Add(1)

	data, err := os.ReadFile(recordPath(dir, slug))
	if os.IsNotExist(err) {
		return nil, coreerrors.Newf(coreerrors.KindNotFound,
			"character %q not found in %s", slug, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	rec, err := DeserializeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("parse record %s: %w", slug, err)
	}

	s.cache.Add(key, rec.Clone())
	return rec, nil
}

// Update applies a metadata patch and a key-wise section merge, bumps the
// updated timestamp, and rebuilds the manifest. Created is never touched.
func (s *Store) Update(dir, slug string, meta *MetadataPatch, sections map[string]string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(dir, slug)
	if err != nil {
		return nil, err
	}

	// Renames would orphan the record file; the slug stays the name's.
	if meta != nil && meta.Name != nil && Slugify(*meta.Name) != slug {
		return nil, coreerrors.Newf(coreerrors.KindValidation,
			"rename would change slug %q; create and delete instead", slug)
	}

	if err := rec.Apply(meta, sections); err != nil {
		return nil, err
	}

	if err := s.writeRecord(dir, slug, rec); err != nil {
		return nil, err
	}

	return rec.Clone(), nil
}

// Delete removes a record and rebuilds the manifest. Deleting an absent
// record fails with NotFound.
func (s *Store) Delete(dir, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(recordPath(dir, slug)); err != nil {
		if os.IsNotExist(err) {
			return coreerrors.Newf(coreerrors.KindNotFound,
				"character %q not found in %s", slug, dir)
		}
		return fmt.Errorf("delete record: %w", err)
	}

	s.cache.Remove(cacheKey(dir, slug))
	return s.rebuildManifest(dir)
}

// List returns the directory's manifest, rebuilding it first whenever it
// is missing, unparseable, or stale relative to the record files. This is
// the self-healing path that repairs interrupted writes and manual edits.
func (s *Store) List(dir string) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := readManifest(dir); ok && !manifestStale(dir, m) {
		return m, nil
	}

	s.logger.Debug("manifest stale, rebuilding", "dir", dir)
	if err := s.rebuildManifest(dir); err != nil {
		return nil, err
	}

	m, ok := readManifest(dir)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.KindStateWrite,
			"manifest rebuild for %s did not produce a readable index", dir)
	}
	return m, nil
}

// Promote copies a session character into the library, carrying only the
// stable sections. An existing library record keeps its own stable fields
// on conflict and its origin-session list is unioned; the session copy is
// never modified.
func (s *Store) Promote(sessionDir, slug, libraryDir string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, err := s.readRecord(sessionDir, slug)
	if err != nil {
		return nil, err
	}

	origin := originLabel(sessionDir)

	target, err := s.readRecord(libraryDir, slug)
	switch {
	case err == nil:
		s.mergePromotion(target, source)
	case coreerrors.GetKind(err) == coreerrors.KindNotFound:
		target = s.stableCopy(source)
	default:
		return nil, err
	}

	target.OriginSessions = unionStrings(target.OriginSessions, origin)

	if err := s.writeRecord(libraryDir, slug, target); err != nil {
		return nil, err
	}

	return target.Clone(), nil
}

// stableCopy builds a fresh library record from a session record: header
// fields plus stable sections, never the session log.
func (s *Store) stableCopy(source *Record) *Record {
	target := source.Clone()
	target.ImportedFrom = ""
	target.ImportedAt = time.Time{}
	target.Sections = make(map[string]string)

	for _, name := range s.stableSections {
		if content, ok := source.Sections[name]; ok {
			target.Sections[name] = content
		}
	}

	return target
}

// mergePromotion folds a session record into an existing library record.
// Library stable fields win on conflict; only sections the library lacks
// are taken from the session.
func (s *Store) mergePromotion(target, source *Record) {
	for _, name := range s.stableSections {
		content, ok := source.Sections[name]
		if !ok {
			continue
		}
		if existing, exists := target.Sections[name]; exists && existing != "" {
			continue
		}
		if target.Sections == nil {
			target.Sections = make(map[string]string)
		}
		target.Sections[name] = content
	}

	target.Tags = unionStrings(target.Tags, source.Tags...)
}

// Import copies a library character into a session directory. The copy is
// verbatim except the session log starts empty and a provenance marker is
// added. An existing record with the same slug fails with Conflict unless
// the caller opts into overwrite.
func (s *Store) Import(libraryDir, slug, sessionDir string, overwrite bool) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, err := s.readRecord(libraryDir, slug)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(recordPath(sessionDir, slug)); err == nil && !overwrite {
		return nil, coreerrors.Newf(coreerrors.KindConflict,
			"character %q already exists in %s", slug, sessionDir)
	}

	target := source.Clone()
	delete(target.Sections, SectionLog)
	target.OriginSessions = nil
	target.ImportedFrom = "library"
	target.ImportedAt = nowUTC()

	if err := s.writeRecord(sessionDir, slug, target); err != nil {
		return nil, err
	}

	return target.Clone(), nil
}

// writeRecord persists a record atomically, invalidates the cache entry,
// and rebuilds the directory manifest. Callers hold the store mutex.
func (s *Store) writeRecord(dir, slug string, rec *Record) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create character dir: %w", err)
	}

	data, err := rec.Serialize()
	if err != nil {
		return fmt.Errorf("serialize record: %w", err)
	}

	path := recordPath(dir, slug)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename record: %w", err)
	}

	s.cache.Remove(cacheKey(dir, slug))

	return s.rebuildManifest(dir)
}

// rebuildManifest recomputes the whole index from the record files.
// Partial updates are disallowed; a full recompute cannot diverge.
func (s *Store) rebuildManifest(dir string) error {
	records, err := scanRecords(dir)
	if err != nil {
		return fmt.Errorf("scan records: %w", err)
	}

	if err := writeManifest(dir, buildManifest(records)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// originLabel derives a session label from a character directory path.
// Session scaffolds keep characters under a "characters" subdirectory, so
// that segment is skipped.
func originLabel(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "characters" {
		return filepath.Base(filepath.Dir(filepath.Clean(dir)))
	}
	return base
}

func unionStrings(existing []string, add ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		seen[v] = struct{}{}
	}

	out := append([]string(nil), existing...)
	for _, v := range add {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	sort.Strings(out)
	return out
}
