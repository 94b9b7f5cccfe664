// Package project persists long-form project metadata: manuscript
// position, plot-thread lifecycle, character focus, and the session log.
// Each project writes with the same rotate-then-replace durability the
// global state store uses, so an interrupted save always leaves a
// recoverable copy.
package project

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	coreerrors "github.com/adalundhe/fable/core/errors"
	"github.com/adalundhe/fable/core/storage"
)

// DescriptorName is the project metadata filename.
const DescriptorName = "project.json"

// backupSlots is the per-project backup ring size. Project files churn
// less than the global state document, so a shallow ring suffices.
const backupSlots = 2

// Manager owns project persistence over a workspace's projects tree.
type Manager struct {
	ws     *storage.Workspace
	logger *slog.Logger
	mu     sync.Mutex
}

// NewManager creates a project manager for the workspace.
func NewManager(ws *storage.Workspace, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{ws: ws, logger: logger}
}

func (m *Manager) descriptorPath(name string) string {
	return filepath.Join(m.ws.ProjectDir(name), DescriptorName)
}

func (m *Manager) backupPath(name string, slot int) string {
	return fmt.Sprintf("%s.bak.%d", m.descriptorPath(name), slot)
}

// Create materializes a new project. An existing project with the same
// name fails with Conflict; projects are never created implicitly.
func (m *Manager) Create(name, workingTitle, genre string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "project name is required")
	}
	if _, err := os.Stat(m.ws.ProjectDir(name)); err == nil {
		return nil, coreerrors.Newf(coreerrors.KindConflict, "project %q already exists", name)
	}

	proj := NewProject(name, workingTitle, genre)
	if err := m.saveLocked(proj); err != nil {
		return nil, err
	}

	m.logger.Info("project created", "name", name, "genre", genre)
	return proj, nil
}

// Load reads a project, falling back through its backup ring when the
// primary does not parse.
func (m *Manager) Load(name string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(name)
}

func (m *Manager) loadLocked(name string) (*Project, error) {
	data, err := os.ReadFile(m.descriptorPath(name))
	if os.IsNotExist(err) {
		return nil, coreerrors.Newf(coreerrors.KindNotFound, "project %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}

	var proj Project
	if err := json.Unmarshal(data, &proj); err == nil {
		return &proj, nil
	}

	for slot := 1; slot <= backupSlots; slot++ {
		backup, err := os.ReadFile(m.backupPath(name, slot))
		if err != nil {
			continue
		}
		if err := json.Unmarshal(backup, &proj); err == nil {
			m.logger.Warn("project primary corrupt, recovered from backup",
				"project", name, "slot", slot)
			return &proj, nil
		}
	}

	return nil, coreerrors.Newf(coreerrors.KindStateCorrupt,
		"project %q unreadable and no backup parses", name)
}

// Exists reports whether a project is on disk.
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(m.descriptorPath(name))
	return err == nil
}

// List returns all project names in sorted order.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.ws.Projects())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read projects tree: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(m.descriptorPath(entry.Name())); err == nil {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	return names, nil
}

// saveLocked persists a project: rotate the backup ring, then replace the
// primary atomically. Callers hold the manager mutex.
func (m *Manager) saveLocked(proj *Project) error {
	dir := m.ws.ProjectDir(proj.Name)
	if err := storage.EnsureDir(dir); err != nil {
		return coreerrors.Wrap(coreerrors.KindStateWrite, "create project dir", err)
	}

	path := m.descriptorPath(proj.Name)

	for slot := backupSlots; slot >= 2; slot-- {
		from := m.backupPath(proj.Name, slot-1)
		to := m.backupPath(proj.Name, slot)
		if err := os.Rename(from, to); err != nil && !os.IsNotExist(err) {
			return coreerrors.Wrap(coreerrors.KindStateWrite, "rotate project backups", err)
		}
	}
	if err := copyFile(path, m.backupPath(proj.Name, 1)); err != nil {
		return coreerrors.Wrap(coreerrors.KindStateWrite, "refresh project backup", err)
	}

	data, err := json.MarshalIndent(proj, "", "  ")
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindStateWrite, "serialize project", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return coreerrors.Wrap(coreerrors.KindStateWrite, "write project", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return coreerrors.Wrap(coreerrors.KindStateWrite, "replace project", err)
	}

	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Mutate loads a project, applies fn, and saves the result.
func (m *Manager) Mutate(name string, fn func(*Project) error) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	proj, err := m.loadLocked(name)
	if err != nil {
		return nil, err
	}

	if err := fn(proj); err != nil {
		return nil, err
	}

	if err := m.saveLocked(proj); err != nil {
		return nil, err
	}

	return proj, nil
}

// AddThread appends a new active thread to a project.
func (m *Manager) AddThread(name, description string, characters []string) (*Thread, error) {
	var added *Thread
	_, err := m.Mutate(name, func(p *Project) error {
		thread, err := p.AddThread(description, characters)
		if err != nil {
			return err
		}
		copied := *thread
		added = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateThreadStatus moves a thread through its state machine.
func (m *Manager) UpdateThreadStatus(name, threadID string, target ThreadStatus, resolutionScene string) (*Thread, error) {
	var updated *Thread
	_, err := m.Mutate(name, func(p *Project) error {
		thread, err := p.UpdateThreadStatus(threadID, target, resolutionScene)
		if err != nil {
			return err
		}
		copied := *thread
		updated = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdatePosition replaces the manuscript position.
func (m *Manager) UpdatePosition(name, scene, section string) (*Project, error) {
	return m.Mutate(name, func(p *Project) error {
		p.UpdatePosition(scene, section)
		return nil
	})
}

// UpdateCharacterFocus replaces the focus list.
func (m *Manager) UpdateCharacterFocus(name string, focus []string) (*Project, error) {
	return m.Mutate(name, func(p *Project) error {
		p.UpdateCharacterFocus(focus)
		return nil
	})
}

// UpdateCurrentArc replaces the current arc label.
func (m *Manager) UpdateCurrentArc(name, arc string) (*Project, error) {
	return m.Mutate(name, func(p *Project) error {
		p.UpdateCurrentArc(arc)
		return nil
	})
}

// EndSession appends a session-log entry and accumulates the word count.
func (m *Manager) EndSession(name string, scenesWritten, wordCountDelta int) (*Project, error) {
	return m.Mutate(name, func(p *Project) error {
		p.EndSession(scenesWritten, wordCountDelta)
		return nil
	})
}
