// Package mode orchestrates operating-mode changes: it combines the
// input router, the session lifecycle, the project store, and the global
// state document so a switch lands with the right side effects and no
// partial state.
package mode

import (
	"log/slog"
	"strings"

	coreerrors "github.com/adalundhe/fable/core/errors"
	"github.com/adalundhe/fable/core/router"
	"github.com/adalundhe/fable/core/session"
	"github.com/adalundhe/fable/core/statestore"
)

// ProjectStore is the project surface the switcher needs.
type ProjectStore interface {
	Exists(name string) bool
	List() ([]string, error)
}

// SessionStore is the session surface the switcher needs.
type SessionStore interface {
	Resolve(partial string) (*session.Session, error)
	Archive(sess *session.Session) (*session.Session, error)
}

// Switcher changes the operating mode recorded in the state document.
type Switcher struct {
	router   *router.Router
	sessions SessionStore
	projects ProjectStore
	state    *statestore.Store
	logger   *slog.Logger
}

// New creates a switcher.
func New(r *router.Router, sessions SessionStore, projects ProjectStore, state *statestore.Store, logger *slog.Logger) *Switcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Switcher{
		router:   r,
		sessions: sessions,
		projects: projects,
		state:    state,
		logger:   logger,
	}
}

// Switch commits a mode change. Leaving session mode archives the
// outgoing session best-effort; a failed archive is logged and the
// switch proceeds. Switching to book mode with an unknown project fails
// listing the available ones, with no state change.
func (s *Switcher) Switch(targetMode, target string) (*statestore.Document, error) {
	if targetMode != statestore.ModeBook && targetMode != statestore.ModeSession {
		return nil, coreerrors.Newf(coreerrors.KindValidation, "unknown mode %q", targetMode)
	}

	doc, err := s.state.Read()
	if err != nil {
		return nil, err
	}

	if targetMode == statestore.ModeBook && !s.projects.Exists(target) {
		available, listErr := s.projects.List()
		if listErr != nil {
			s.logger.Warn("project listing failed", "error", listErr)
		}
		return nil, coreerrors.Newf(coreerrors.KindNotFound,
			"project %q does not exist", target).
			WithContext("available", strings.Join(available, ", "))
	}

	if doc.Mode == statestore.ModeSession {
		s.archiveOutgoing(doc, targetMode, target)
	}

	doc.AppendSwitch(targetMode, target)
	if err := s.state.Write(doc); err != nil {
		return nil, err
	}

	s.logger.Info("mode switched", "mode", targetMode, "target", target)
	return doc, nil
}

// archiveOutgoing archives the session named by the most recent switch
// entry. Best-effort only; the mode change never blocks on it. Switching
// back onto the same session leaves it active.
func (s *Switcher) archiveOutgoing(doc *statestore.Document, targetMode, target string) {
	name := lastSessionTarget(doc)
	if name == "" || (targetMode == statestore.ModeSession && name == target) {
		return
	}

	sess, err := s.sessions.Resolve(name)
	if err != nil {
		s.logger.Warn("outgoing session not archived", "session", name, "error", err)
		return
	}
	if _, err := s.sessions.Archive(sess); err != nil {
		s.logger.Warn("outgoing session not archived", "session", name, "error", err)
	}
}

func lastSessionTarget(doc *statestore.Document) string {
	for i := len(doc.SwitchHistory) - 1; i >= 0; i-- {
		entry := doc.SwitchHistory[i]
		if entry.Mode == statestore.ModeSession {
			return entry.Target
		}
	}
	return ""
}

// Route classifies freeform input and, when the classification commits,
// performs the switch. Ambiguous classifications are returned untouched
// for the caller to present.
func (s *Switcher) Route(text string) (*router.Result, *statestore.Document, error) {
	result, err := s.router.Classify(text)
	if err != nil {
		return nil, nil, err
	}

	if result.Mode == router.ModeAmbiguous {
		return result, nil, nil
	}

	doc, err := s.switchFromResult(result)
	if err != nil {
		return result, nil, err
	}
	return result, doc, nil
}

// Resolve applies a clarification answer to a previous ambiguous result
// and performs the switch the answer commits to.
func (s *Switcher) Resolve(prev *router.Result, answer string) (*router.Result, *statestore.Document, error) {
	result := s.router.Clarify(prev, answer)

	doc, err := s.switchFromResult(result)
	if err != nil {
		return result, nil, err
	}
	return result, doc, nil
}

func (s *Switcher) switchFromResult(result *router.Result) (*statestore.Document, error) {
	switch result.Mode {
	case router.ModeBook:
		return s.Switch(statestore.ModeBook, result.Target)
	case router.ModeSession:
		return s.Switch(statestore.ModeSession, result.Target)
	default:
		return nil, coreerrors.Newf(coreerrors.KindValidation,
			"cannot switch to %q", result.Mode)
	}
}
