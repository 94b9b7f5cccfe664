package character

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	coreerrors "github.com/adalundhe/fable/core/errors"
)

// SectionLog is the session-scoped log section. It never survives a
// promote and is reset on import.
const SectionLog = "log"

// Record is one character: a small metadata header plus named free-form
// sections. Name is the only required field. A record is owned by the
// directory that holds it; cross-directory movement goes through Promote
// and Import, never by sharing files.
type Record struct {
	Name    string    `json:"name"`
	Role    string    `json:"role,omitempty"`
	Status  string    `json:"status,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	// Sections maps section name to free-form content. Content shape is
	// never validated, only key well-formedness.
	Sections map[string]string `json:"sections,omitempty"`

	// OriginSessions lists the sessions a library record was promoted
	// from. The list only ever grows.
	OriginSessions []string `json:"origin_sessions,omitempty"`

	// ImportedFrom marks a session-local record that was imported from
	// the library.
	ImportedFrom string    `json:"imported_from,omitempty"`
	ImportedAt   time.Time `json:"imported_at,omitzero"`
}

var slugCollapse = regexp.MustCompile(`[^a-z0-9]+`)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Slugify normalizes a display name into a filesystem-safe identifier:
// lowercase, runs of non-alphanumerics become a single hyphen, leading and
// trailing hyphens trimmed.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = slugCollapse.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// NewRecord creates a record for the given display name.
func NewRecord(name string) (*Record, error) {
	if strings.TrimSpace(name) == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "character name is required")
	}
	if Slugify(name) == "" {
		return nil, coreerrors.Newf(coreerrors.KindValidation,
			"character name %q produces an empty slug", name)
	}

	now := time.Now().UTC()
	return &Record{
		Name:     name,
		Created:  now,
		Updated:  now,
		Sections: make(map[string]string),
	}, nil
}

// Slug returns the record's filesystem identifier.
func (r *Record) Slug() string {
	return Slugify(r.Name)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r

	if r.Tags != nil {
		clone.Tags = append([]string(nil), r.Tags...)
	}
	if r.OriginSessions != nil {
		clone.OriginSessions = append([]string(nil), r.OriginSessions...)
	}
	if r.Sections != nil {
		clone.Sections = make(map[string]string, len(r.Sections))
		for k, v := range r.Sections {
			clone.Sections[k] = v
		}
	}

	return &clone
}

// Serialize encodes the record for storage.
func (r *Record) Serialize() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// DeserializeRecord decodes a stored record and checks it carries a name.
func DeserializeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Name == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "record missing name")
	}
	if rec.Sections == nil {
		rec.Sections = make(map[string]string)
	}
	return &rec, nil
}

// MetadataPatch updates header fields. Nil fields are left untouched.
type MetadataPatch struct {
	Name   *string
	Role   *string
	Status *string
	Tags   *[]string
}

// Apply merges the patch into the record. Section patches replace matching
// keys and add new ones; section content is never merged deeper.
func (r *Record) Apply(meta *MetadataPatch, sections map[string]string) error {
	if meta != nil {
		if meta.Name != nil {
			if strings.TrimSpace(*meta.Name) == "" {
				return coreerrors.New(coreerrors.KindValidation, "character name is required")
			}
			r.Name = *meta.Name
		}
		if meta.Role != nil {
			r.Role = *meta.Role
		}
		if meta.Status != nil {
			r.Status = *meta.Status
		}
		if meta.Tags != nil {
			r.Tags = append([]string(nil), (*meta.Tags)...)
		}
	}

	for key, content := range sections {
		if strings.TrimSpace(key) == "" {
			return coreerrors.New(coreerrors.KindValidation, "section name must not be empty")
		}
		if r.Sections == nil {
			r.Sections = make(map[string]string)
		}
		r.Sections[key] = content
	}

	r.Updated = time.Now().UTC()
	return nil
}
