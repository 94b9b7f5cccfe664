package project

import (
	"time"

	"github.com/google/uuid"

	coreerrors "github.com/adalundhe/fable/core/errors"
)

// ThreadStatus is the lifecycle state of a plot thread.
type ThreadStatus string

const (
	// ThreadActive indicates a thread currently driving scenes.
	ThreadActive ThreadStatus = "active"

	// ThreadSimmering indicates a thread parked in the background.
	ThreadSimmering ThreadStatus = "simmering"

	// ThreadResolved indicates a thread paid off on the page. Terminal.
	ThreadResolved ThreadStatus = "resolved"

	// ThreadDropped indicates a thread abandoned. Terminal.
	ThreadDropped ThreadStatus = "dropped"
)

// IsTerminal returns true for states no thread leaves again.
func (s ThreadStatus) IsTerminal() bool {
	return s == ThreadResolved || s == ThreadDropped
}

// Valid reports whether the status is one of the four known states.
func (s ThreadStatus) Valid() bool {
	switch s {
	case ThreadActive, ThreadSimmering, ThreadResolved, ThreadDropped:
		return true
	}
	return false
}

// CanTransitionTo returns true if moving to the target status is legal.
// Active and simmering swap freely; either may end resolved or dropped;
// terminal states never transition out. Same-state updates are always
// allowed, so re-asserting a terminal status is an idempotent no-op
// rather than an error.
func (s ThreadStatus) CanTransitionTo(target ThreadStatus) bool {
	if s == target {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return target.Valid()
}

// Thread is one tracked narrative element.
type Thread struct {
	ID              string       `json:"id"`
	Description     string       `json:"description"`
	Characters      []string     `json:"characters,omitempty"`
	Status          ThreadStatus `json:"status"`
	ResolutionScene string       `json:"resolution_scene,omitempty"`
}

// Position is the writing position inside the manuscript.
type Position struct {
	Scene   string `json:"scene"`
	Section string `json:"section"`
}

// SessionLogEntry records one writing session against the project.
type SessionLogEntry struct {
	Date           time.Time `json:"date"`
	ScenesWritten  int       `json:"scenes_written"`
	WordCountDelta int       `json:"word_count_delta"`
}

// Project is the persisted metadata for one long-form writing effort.
// Projects are created explicitly and never auto-archived.
type Project struct {
	Name           string            `json:"name"`
	WorkingTitle   string            `json:"working_title"`
	Genre          string            `json:"genre"`
	Position       Position          `json:"position"`
	Threads        []Thread          `json:"threads"`
	CharacterFocus []string          `json:"character_focus"`
	CurrentArc     string            `json:"current_arc"`
	SessionLog     []SessionLogEntry `json:"session_log"`
	WordCount      int               `json:"word_count"`
	Created        time.Time         `json:"created"`
	Updated        time.Time         `json:"updated"`
}

// NewProject creates a project skeleton.
func NewProject(name, workingTitle, genre string) *Project {
	now := time.Now().UTC()
	return &Project{
		Name:           name,
		WorkingTitle:   workingTitle,
		Genre:          genre,
		Threads:        []Thread{},
		CharacterFocus: []string{},
		SessionLog:     []SessionLogEntry{},
		Created:        now,
		Updated:        now,
	}
}

// AddThread appends a new active thread and returns it.
func (p *Project) AddThread(description string, characters []string) (*Thread, error) {
	if description == "" {
		return nil, coreerrors.New(coreerrors.KindValidation, "thread description is required")
	}

	thread := Thread{
		ID:          uuid.New().String(),
		Description: description,
		Characters:  append([]string(nil), characters...),
		Status:      ThreadActive,
	}

	p.Threads = append(p.Threads, thread)
	p.touch()
	return &p.Threads[len(p.Threads)-1], nil
}

// thread finds a thread by id.
func (p *Project) thread(id string) (*Thread, error) {
	for i := range p.Threads {
		if p.Threads[i].ID == id {
			return &p.Threads[i], nil
		}
	}
	return nil, coreerrors.Newf(coreerrors.KindNotFound, "thread %q not found", id)
}

// UpdateThreadStatus moves a thread through its state machine. Illegal
// transitions fail with InvalidTransition and change nothing.
func (p *Project) UpdateThreadStatus(id string, target ThreadStatus, resolutionScene string) (*Thread, error) {
	if !target.Valid() {
		return nil, coreerrors.Newf(coreerrors.KindValidation, "unknown thread status %q", target)
	}

	thread, err := p.thread(id)
	if err != nil {
		return nil, err
	}

	if !thread.Status.CanTransitionTo(target) {
		return nil, coreerrors.Newf(coreerrors.KindInvalidTransition,
			"thread %q cannot move %s -> %s", id, thread.Status, target)
	}

	thread.Status = target
	if resolutionScene != "" {
		thread.ResolutionScene = resolutionScene
	}
	p.touch()
	return thread, nil
}

// UpdatePosition replaces the writing position.
func (p *Project) UpdatePosition(scene, section string) {
	p.Position = Position{Scene: scene, Section: section}
	p.touch()
}

// UpdateCharacterFocus replaces the focus list.
func (p *Project) UpdateCharacterFocus(focus []string) {
	p.CharacterFocus = append([]string(nil), focus...)
	p.touch()
}

// UpdateCurrentArc replaces the current arc label.
func (p *Project) UpdateCurrentArc(arc string) {
	p.CurrentArc = arc
	p.touch()
}

// EndSession appends a session-log entry and accumulates the word count.
// Threads and position are left alone.
func (p *Project) EndSession(scenesWritten, wordCountDelta int) SessionLogEntry {
	entry := SessionLogEntry{
		Date:           time.Now().UTC(),
		ScenesWritten:  scenesWritten,
		WordCountDelta: wordCountDelta,
	}

	p.SessionLog = append(p.SessionLog, entry)
	p.WordCount += wordCountDelta
	p.touch()
	return entry
}

func (p *Project) touch() {
	p.Updated = time.Now().UTC()
}
