package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/fable/core/statestore"
)

type stubProjects struct {
	names []string
}

func (s *stubProjects) List() ([]string, error) {
	return s.names, nil
}

type stubState struct {
	doc *statestore.Document
}

func (s *stubState) Read() (*statestore.Document, error) {
	return s.doc, nil
}

func newTestRouter(projects []string, activeProject string) *Router {
	doc := statestore.DefaultDocument()
	doc.ActiveProject = activeProject
	return New(Config{}, &stubProjects{names: projects}, &stubState{doc: doc}, nil)
}

func TestBareContinuationResolvesActiveProject(t *testing.T) {
	r := newTestRouter([]string{"atlas-saga"}, "atlas-saga")

	result, err := r.Classify("continue")
	require.NoError(t, err)

	assert.Equal(t, ModeBook, result.Mode)
	assert.Equal(t, "atlas-saga", result.Target)
	assert.GreaterOrEqual(t, result.Confidence, 0.6)
}

func TestBareContinuationWithoutActiveProject(t *testing.T) {
	r := newTestRouter([]string{"atlas-saga"}, "")

	result, err := r.Classify("continue")
	require.NoError(t, err)

	assert.Equal(t, ModeAmbiguous, result.Mode)
	assert.Equal(t, "no_active_project", result.Reason)
	assert.Len(t, result.Options, 2)
}

func TestVibeWordsAloneAreAmbiguous(t *testing.T) {
	r := newTestRouter(nil, "")

	result, err := r.Classify("dark romance")
	require.NoError(t, err)

	assert.Equal(t, ModeAmbiguous, result.Mode)
	require.Len(t, result.Options, 2, "clarification offers exactly two options")
	assert.Equal(t, ModeBook, result.Options[0].Mode)
	assert.Equal(t, ModeSession, result.Options[1].Mode)
}

func TestVibePlusSituationCommitsToSession(t *testing.T) {
	r := newTestRouter(nil, "")

	result, err := r.Classify("cozy reunion at the lighthouse")
	require.NoError(t, err)

	assert.Equal(t, ModeSession, result.Mode)
	assert.Empty(t, result.Target)
	assert.GreaterOrEqual(t, result.Confidence, 0.6)
}

func TestExplicitProjectNameIsStrongBookSignal(t *testing.T) {
	r := newTestRouter([]string{"atlas-saga", "zephyr"}, "")

	result, err := r.Classify("back to atlas saga, chapter 12")
	require.NoError(t, err)

	assert.Equal(t, ModeBook, result.Mode)
	assert.Equal(t, "atlas-saga", result.Target)

	categories := make(map[string]bool)
	for _, sig := range result.Signals {
		categories[sig.Category] = true
	}
	assert.True(t, categories[CategoryProjectName])
	assert.True(t, categories[CategoryContinuation])
	assert.True(t, categories[CategoryChapterRef])
}

func TestChapterRefAloneIsAmbiguous(t *testing.T) {
	r := newTestRouter(nil, "")

	result, err := r.Classify("scene 4")
	require.NoError(t, err)

	assert.Equal(t, ModeAmbiguous, result.Mode)
}

func TestComparableSignalsForceClarification(t *testing.T) {
	r := newTestRouter([]string{"atlas-saga"}, "")

	// A named project (0.6 book) against a lone vibe word (0.5 session)
	// lands inside the comparable margin.
	result, err := r.Classify("atlas saga but cozy")
	require.NoError(t, err)

	assert.Equal(t, ModeAmbiguous, result.Mode)
	assert.Equal(t, "comparable_signals", result.Reason)
	require.Len(t, result.Options, 2)
	assert.Equal(t, "atlas-saga", result.Options[0].Target,
		"book option keeps the named project")
}

func TestThresholdIsConfigurable(t *testing.T) {
	low := New(Config{ConfidenceThreshold: 0.3}, nil, nil, nil)

	result, err := low.Classify("dark romance")
	require.NoError(t, err)
	assert.Equal(t, ModeSession, result.Mode, "0.5 clears a 0.3 threshold")
}

func TestClarifyCommitsToBook(t *testing.T) {
	r := newTestRouter([]string{"atlas-saga"}, "")

	prev, err := r.Classify("dark romance")
	require.NoError(t, err)
	require.Equal(t, ModeAmbiguous, prev.Mode)

	resolved := r.Clarify(prev, "the book please")
	assert.Equal(t, ModeBook, resolved.Mode)
}

func TestClarifyByProjectName(t *testing.T) {
	r := newTestRouter([]string{"atlas-saga"}, "")

	prev, _ := r.Classify("dark romance")
	resolved := r.Clarify(prev, "atlas saga")

	assert.Equal(t, ModeBook, resolved.Mode)
	assert.Equal(t, "atlas-saga", resolved.Target)
}

func TestClarifyDefaultsToSession(t *testing.T) {
	r := newTestRouter(nil, "")

	prev, _ := r.Classify("dark romance")
	resolved := r.Clarify(prev, "hmm whatever you think")

	assert.Equal(t, ModeSession, resolved.Mode)
	assert.Equal(t, "clarification_default", resolved.Reason)
}

func TestNilDependenciesDisableSignals(t *testing.T) {
	r := New(Config{}, nil, nil, nil)

	result, err := r.Classify("continue atlas saga")
	require.NoError(t, err)

	// No project source and no state: continuation alone cannot commit.
	assert.Equal(t, ModeAmbiguous, result.Mode)
}
