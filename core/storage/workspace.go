// Package storage resolves the on-disk layout of a fable workspace.
package storage

import (
	"os"
	"path/filepath"
	"sync"
)

// EnvHome overrides the workspace root when set.
const EnvHome = "FABLE_HOME"

// Workspace owns the filesystem layout for a single writing workspace:
// the sessions tree, the projects tree, the shared character library, and
// the global state document with its backup slots.
type Workspace struct {
	Root string
}

var (
	globalWorkspace     *Workspace
	globalWorkspaceOnce sync.Once
)

// Resolve returns the workspace for the current user, honoring FABLE_HOME.
// The result is cached after first call.
func Resolve() *Workspace {
	globalWorkspaceOnce.Do(func() {
		globalWorkspace = resolveImpl()
	})
	return globalWorkspace
}

func resolveImpl() *Workspace {
	if root := os.Getenv(EnvHome); root != "" {
		return &Workspace{Root: root}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Workspace{Root: filepath.Join(home, ".fable")}
}

// At returns a workspace rooted at an explicit path, bypassing resolution.
func At(root string) *Workspace {
	return &Workspace{Root: root}
}

// RootDir returns a path under the workspace root.
func (w *Workspace) RootDir(subpath ...string) string {
	return filepath.Join(append([]string{w.Root}, subpath...)...)
}

// Sessions returns the root of the genre-scoped session tree.
func (w *Workspace) Sessions() string {
	return w.RootDir("sessions")
}

// GenreDir returns the directory holding one genre's sessions.
func (w *Workspace) GenreDir(genre string) string {
	return filepath.Join(w.Sessions(), genre)
}

// SessionDir returns the directory for a named session in a genre.
func (w *Workspace) SessionDir(genre, name string) string {
	return filepath.Join(w.GenreDir(genre), name)
}

// Projects returns the root of the long-form project tree.
func (w *Workspace) Projects() string {
	return w.RootDir("projects")
}

// ProjectDir returns the directory for a named project.
func (w *Workspace) ProjectDir(name string) string {
	return filepath.Join(w.Projects(), name)
}

// Library returns the cross-session character library directory.
func (w *Workspace) Library() string {
	return w.RootDir("library", "characters")
}

// StateFile returns the path of the global state document.
func (w *Workspace) StateFile() string {
	return w.RootDir("state.json")
}

// ConfigFile returns the path of the workspace configuration file.
func (w *Workspace) ConfigFile() string {
	return w.RootDir("config.yaml")
}

// EnsureDir creates a directory with standard permissions if absent.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// EnsureLayout creates the standard workspace directories.
func (w *Workspace) EnsureLayout() error {
	dirs := []string{
		w.Root,
		w.Sessions(),
		w.Projects(),
		w.Library(),
	}

	for _, dir := range dirs {
		if err := EnsureDir(dir); err != nil {
			return err
		}
	}

	return nil
}
