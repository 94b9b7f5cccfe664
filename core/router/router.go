// Package router classifies freeform input into an operating mode. The
// classifier is deliberately rule-based: weighted signal categories over
// keyword and pattern matches, with a hand-tuned confidence threshold
// exposed as configuration rather than learned.
package router

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/adalundhe/fable/core/statestore"
)

// Category weights. A known project name is the strong book signal;
// everything else counts once per category regardless of how many
// keywords inside the category matched.
const (
	weightProjectName  = 3.0
	weightContinuation = 1.0
	weightChapterRef   = 1.0
	weightVibe         = 1.0
	weightSituation    = 1.0
)

const (
	bookSideTotal    = weightProjectName + weightContinuation + weightChapterRef
	sessionSideTotal = weightVibe + weightSituation
)

// DefaultConfidenceThreshold commits to a single mode at or above this
// normalized score. Policy, not contract.
const DefaultConfidenceThreshold = 0.6

// DefaultComparableMargin treats book and session scores within this gap
// as tied.
const DefaultComparableMargin = 0.15

var chapterRefPattern = regexp.MustCompile(`\b(?:chapter|scene|ch\.?)\s*\d+\b`)

// ProjectLister supplies the known project names.
type ProjectLister interface {
	List() ([]string, error)
}

// StateReader supplies the global routing state for continuation
// resolution.
type StateReader interface {
	Read() (*statestore.Document, error)
}

// Config tunes the classifier. Zero values fall back to defaults.
type Config struct {
	ConfidenceThreshold float64
	ComparableMargin    float64
	ContinuationPhrases []string
	VibeWords           []string
	SituationWords      []string
}

func defaultPhrases() []string {
	return []string{"continue", "resume", "back to", "work on", "pick up"}
}

func defaultVibeWords() []string {
	return []string{
		"dark", "cozy", "gritty", "romance", "noir", "fluffy",
		"angst", "slow burn", "enemies to lovers", "found family",
	}
}

func defaultSituationWords() []string {
	return []string{
		"stranded", "trapped", "meet", "reunion", "heist",
		"interview", "wedding", "funeral", "road trip",
	}
}

// Router classifies input against the known projects and the global
// routing state.
type Router struct {
	threshold    float64
	margin       float64
	continuation []*regexp.Regexp
	vibe         []*regexp.Regexp
	situation    []*regexp.Regexp
	projects     ProjectLister
	state        StateReader
	logger       *slog.Logger
}

// New creates a router. Either dependency may be nil, disabling the
// corresponding signal source.
func New(cfg Config, projects ProjectLister, state StateReader, logger *slog.Logger) *Router {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.ComparableMargin <= 0 {
		cfg.ComparableMargin = DefaultComparableMargin
	}
	if len(cfg.ContinuationPhrases) == 0 {
		cfg.ContinuationPhrases = defaultPhrases()
	}
	if len(cfg.VibeWords) == 0 {
		cfg.VibeWords = defaultVibeWords()
	}
	if len(cfg.SituationWords) == 0 {
		cfg.SituationWords = defaultSituationWords()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		threshold:    cfg.ConfidenceThreshold,
		margin:       cfg.ComparableMargin,
		continuation: compileKeywordPatterns(cfg.ContinuationPhrases),
		vibe:         compileKeywordPatterns(cfg.VibeWords),
		situation:    compileKeywordPatterns(cfg.SituationWords),
		projects:     projects,
		state:        state,
		logger:       logger,
	}
}

func compileKeywordPatterns(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		escaped := regexp.QuoteMeta(strings.ToLower(kw))
		re, err := regexp.Compile(`(?i)\b` + escaped + `\b`)
		if err == nil {
			patterns = append(patterns, re)
		}
	}
	return patterns
}

func firstMatch(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, p := range patterns {
		if m := p.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

// Classify scores the text and returns a mode, a target where one could
// be named or resolved, and a confidence. Low confidence or comparable
// book and session scores produce an ambiguous result carrying exactly
// two options.
func (r *Router) Classify(text string) (*Result, error) {
	result := &Result{}
	lowered := strings.ToLower(text)

	var bookScore, sessionScore float64

	target := r.matchProjectName(lowered, result)
	if target != "" {
		bookScore += weightProjectName
	}

	continuation := false
	if phrase, ok := firstMatch(lowered, r.continuation); ok {
		continuation = true
		bookScore += weightContinuation
		result.addSignal(CategoryContinuation, phrase, weightContinuation)
	}

	if ref := chapterRefPattern.FindString(lowered); ref != "" {
		bookScore += weightChapterRef
		result.addSignal(CategoryChapterRef, ref, weightChapterRef)
	}

	if word, ok := firstMatch(lowered, r.vibe); ok {
		sessionScore += weightVibe
		result.addSignal(CategoryVibe, word, weightVibe)
	}
	if word, ok := firstMatch(lowered, r.situation); ok {
		sessionScore += weightSituation
		result.addSignal(CategorySituation, word, weightSituation)
	}

	// A bare continuation phrase resolves against the active project;
	// resolution counts the same as an explicit name.
	if continuation && target == "" {
		active, err := r.activeProject()
		if err != nil {
			return nil, err
		}
		if active != "" {
			target = active
			bookScore += weightProjectName
			result.addSignal(CategoryProjectName, active, weightProjectName)
		} else if sessionScore == 0 {
			r.logger.Debug("continuation with no active project", "input", text)
			return r.ambiguous(result, target, "no_active_project"), nil
		}
	}

	bookNorm := bookScore / bookSideTotal
	sessionNorm := sessionScore / sessionSideTotal

	winner, confidence := ModeBook, bookNorm
	if sessionNorm > bookNorm {
		winner, confidence = ModeSession, sessionNorm
	}
	result.Confidence = confidence

	comparable := bookScore > 0 && sessionScore > 0 &&
		absFloat(bookNorm-sessionNorm) < r.margin

	if confidence < r.threshold || comparable {
		reason := "low_confidence"
		if comparable {
			reason = "comparable_signals"
		}
		return r.ambiguous(result, target, reason), nil
	}

	result.Mode = winner
	if winner == ModeBook {
		result.Target = target
	}
	return result, nil
}

// matchProjectName scans the known project names for a word-boundary
// match, hyphens matching spaces.
func (r *Router) matchProjectName(lowered string, result *Result) string {
	if r.projects == nil {
		return ""
	}

	names, err := r.projects.List()
	if err != nil {
		r.logger.Warn("project listing failed during classification", "error", err)
		return ""
	}

	for _, name := range names {
		spoken := strings.ReplaceAll(strings.ToLower(name), "-", " ")
		pattern := `\b` + strings.ReplaceAll(regexp.QuoteMeta(spoken), " ", `[\s-]+`) + `\b`
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(lowered) {
			result.addSignal(CategoryProjectName, name, weightProjectName)
			return name
		}
	}

	return ""
}

func (r *Router) activeProject() (string, error) {
	if r.state == nil {
		return "", nil
	}

	doc, err := r.state.Read()
	if err != nil {
		return "", fmt.Errorf("read routing state: %w", err)
	}
	return doc.ActiveProject, nil
}

// ambiguous fills a two-option clarification payload.
func (r *Router) ambiguous(result *Result, target, reason string) *Result {
	result.Mode = ModeAmbiguous
	result.Reason = reason

	bookLabel := "Continue a book project"
	if target != "" {
		bookLabel = fmt.Sprintf("Continue the project %q", target)
	}

	result.Options = []Option{
		{Mode: ModeBook, Target: target, Label: bookLabel},
		{Mode: ModeSession, Label: "Start a fresh session"},
	}
	return result
}

// Clarify resolves a previous ambiguous result against the user's answer.
// An answer that still does not commit defaults to session; the caller
// asks at most once.
func (r *Router) Clarify(prev *Result, answer string) *Result {
	lowered := strings.ToLower(answer)

	book := strings.Contains(lowered, "book") || strings.Contains(lowered, "project")
	session := strings.Contains(lowered, "session") || strings.Contains(lowered, "fresh")

	var target string
	for _, opt := range prev.Options {
		if opt.Mode == ModeBook {
			target = opt.Target
		}
	}
	if name := r.matchProjectName(lowered, &Result{}); name != "" {
		book = true
		target = name
	}

	switch {
	case book && !session:
		return &Result{Mode: ModeBook, Target: target, Confidence: 1.0}
	case session && !book:
		return &Result{Mode: ModeSession, Confidence: 1.0}
	default:
		// One re-ask with no resolution defaults to session.
		return &Result{Mode: ModeSession, Confidence: 0.5, Reason: "clarification_default"}
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
