package session

import (
	"regexp"
	"strings"
	"time"
)

// DescriptorName is the descriptor filename inside every session directory.
const DescriptorName = "session.json"

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusActive indicates the genre's current working session.
	StatusActive Status = "active"

	// StatusArchived indicates a session closed out under a date prefix.
	StatusArchived Status = "archived"
)

// Descriptor is the persisted metadata for one session directory.
type Descriptor struct {
	Name       string     `json:"name"`
	Genre      string     `json:"genre"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// Session is a descriptor resolved against the filesystem.
type Session struct {
	Descriptor

	// Path is the session directory.
	Path string

	// SceneCount is a lightweight count of files in the scene directory.
	SceneCount int
}

// datePrefix matches the ISO date prefix an archive rename applies.
var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)

// archivedName reports whether a directory name carries the date prefix.
func archivedName(name string) bool {
	return datePrefix.MatchString(name)
}

// bareName strips the date prefix from a directory name.
func bareName(name string) string {
	return datePrefix.ReplaceAllString(name, "")
}

var nameCollapse = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeName turns a display name into a filesystem-safe directory name.
func normalizeName(name string) string {
	n := strings.ToLower(name)
	n = nameCollapse.ReplaceAllString(n, "-")
	return strings.Trim(n, "-")
}
