package character

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ManifestName is the index filename inside every character directory.
const ManifestName = "manifest.json"

// ManifestVersion is bumped when the manifest layout changes.
const ManifestVersion = 1

// Manifest is the derived index over a directory's character records. It
// is always recomputed from the record files in full; it is never patched
// incrementally and never hand-edited.
type Manifest struct {
	Version    int                `json:"version"`
	Generated  time.Time          `json:"generated"`
	Characters map[string]Summary `json:"characters"`
}

// Summary is one manifest entry.
type Summary struct {
	Name    string    `json:"name"`
	Role    string    `json:"role,omitempty"`
	Status  string    `json:"status,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
	File    string    `json:"file"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Slugs returns the manifest's slug set in sorted order.
func (m *Manifest) Slugs() []string {
	slugs := make([]string, 0, len(m.Characters))
	for slug := range m.Characters {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

func manifestPath(dir string) string {
	return filepath.Join(dir, ManifestName)
}

// recordFile reports whether a directory entry is a character record.
func recordFile(name string) bool {
	if name == ManifestName {
		return false
	}
	if strings.HasSuffix(name, ".tmp") {
		return false
	}
	return filepath.Ext(name) == ".json"
}

// scanRecords parses every record file in dir, keyed by slug (the file
// basename). Unparseable files are skipped; the manifest only indexes
// valid records.
func scanRecords(dir string) (map[string]*Record, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]*Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := make(map[string]*Record)
	for _, entry := range entries {
		if entry.IsDir() || !recordFile(entry.Name()) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		rec, err := DeserializeRecord(data)
		if err != nil {
			continue
		}

		slug := strings.TrimSuffix(entry.Name(), ".json")
		records[slug] = rec
	}

	return records, nil
}

// buildManifest computes the manifest projection for a record set.
func buildManifest(records map[string]*Record) *Manifest {
	m := &Manifest{
		Version:    ManifestVersion,
		Generated:  time.Now().UTC(),
		Characters: make(map[string]Summary, len(records)),
	}

	for slug, rec := range records {
		m.Characters[slug] = Summary{
			Name:    rec.Name,
			Role:    rec.Role,
			Status:  rec.Status,
			Tags:    append([]string(nil), rec.Tags...),
			File:    slug + ".json",
			Created: rec.Created,
			Updated: rec.Updated,
		}
	}

	return m
}

// writeManifest persists a manifest atomically.
func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	path := manifestPath(dir)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// readManifest loads the manifest if present and parseable.
func readManifest(dir string) (*Manifest, bool) {
	data, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		return nil, false
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	if m.Characters == nil {
		m.Characters = map[string]Summary{}
	}
	return &m, true
}

// recordParseable reports whether a file decodes as a valid record.
func recordParseable(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	_, err = DeserializeRecord(data)
	return err == nil
}

// manifestStale reports whether the manifest has diverged from the record
// files on disk: a record missing from the index, an indexed file missing
// from disk, or any record newer than the manifest.
func manifestStale(dir string, m *Manifest) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}

	onDisk := make(map[string]time.Time)
	for _, entry := range entries {
		if entry.IsDir() || !recordFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return true
		}
		slug := strings.TrimSuffix(entry.Name(), ".json")
		onDisk[slug] = info.ModTime()
	}

	for slug, mtime := range onDisk {
		if _, ok := m.Characters[slug]; !ok {
			// Only a parseable record belongs in the index; a file the
			// scan rejects can never be indexed and must not force a
			// rebuild on every List.
			if recordParseable(filepath.Join(dir, slug+".json")) {
				return true
			}
			continue
		}
		if mtime.After(m.Generated) {
			return true
		}
	}

	for slug := range m.Characters {
		if _, ok := onDisk[slug]; !ok {
			return true
		}
	}

	return false
}
