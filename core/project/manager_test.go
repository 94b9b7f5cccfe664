package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/adalundhe/fable/core/errors"
	"github.com/adalundhe/fable/core/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.At(t.TempDir()), nil)
}

func TestCreateAndLoad(t *testing.T) {
	m := newTestManager(t)

	created, err := m.Create("atlas-saga", "The Atlas Saga", "fantasy")
	require.NoError(t, err)
	assert.Equal(t, "The Atlas Saga", created.WorkingTitle)

	loaded, err := m.Load("atlas-saga")
	require.NoError(t, err)
	assert.Equal(t, created.Name, loaded.Name)
	assert.Equal(t, created.Genre, loaded.Genre)
}

func TestCreateConflict(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create("atlas-saga", "", "fantasy")
	require.NoError(t, err)

	_, err = m.Create("atlas-saga", "", "fantasy")
	assert.ErrorIs(t, err, coreerrors.ErrConflict)
}

func TestLoadNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Load("nothing")
	assert.ErrorIs(t, err, coreerrors.ErrNotFound)
	assert.False(t, m.Exists("nothing"))
}

func TestListSorted(t *testing.T) {
	m := newTestManager(t)

	m.Create("zephyr", "", "scifi")
	m.Create("atlas-saga", "", "fantasy")

	names, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"atlas-saga", "zephyr"}, names)
}

func TestThreadOpsPersist(t *testing.T) {
	m := newTestManager(t)
	m.Create("atlas-saga", "", "fantasy")

	thread, err := m.AddThread("atlas-saga", "the missing cartographer", []string{"elena-voss"})
	require.NoError(t, err)

	_, err = m.UpdateThreadStatus("atlas-saga", thread.ID, ThreadResolved, "ch12")
	require.NoError(t, err)

	// Terminal transitions fail and persist nothing.
	_, err = m.UpdateThreadStatus("atlas-saga", thread.ID, ThreadActive, "")
	assert.ErrorIs(t, err, coreerrors.ErrInvalidTransition)

	loaded, err := m.Load("atlas-saga")
	require.NoError(t, err)
	require.Len(t, loaded.Threads, 1)
	assert.Equal(t, ThreadResolved, loaded.Threads[0].Status)
	assert.Equal(t, "ch12", loaded.Threads[0].ResolutionScene)
}

func TestEndSessionPersists(t *testing.T) {
	m := newTestManager(t)
	m.Create("atlas-saga", "", "fantasy")

	_, err := m.EndSession("atlas-saga", 3, 2400)
	require.NoError(t, err)
	_, err = m.EndSession("atlas-saga", 1, 600)
	require.NoError(t, err)

	loaded, err := m.Load("atlas-saga")
	require.NoError(t, err)
	assert.Len(t, loaded.SessionLog, 2)
	assert.Equal(t, 3000, loaded.WordCount)
}

func TestLoadRecoversFromBackup(t *testing.T) {
	ws := storage.At(t.TempDir())
	m := NewManager(ws, nil)
	m.Create("atlas-saga", "", "fantasy")

	// Two saves populate the backup ring, then the primary is corrupted.
	_, err := m.UpdateCurrentArc("atlas-saga", "homecoming")
	require.NoError(t, err)
	_, err = m.UpdateCurrentArc("atlas-saga", "the war")
	require.NoError(t, err)

	primary := filepath.Join(ws.ProjectDir("atlas-saga"), DescriptorName)
	require.NoError(t, os.WriteFile(primary, []byte("{torn"), 0644))

	loaded, err := m.Load("atlas-saga")
	require.NoError(t, err)
	assert.Equal(t, "homecoming", loaded.CurrentArc, "slot 1 holds the state before the last write")
}

func TestLoadAllCorruptFails(t *testing.T) {
	ws := storage.At(t.TempDir())
	m := NewManager(ws, nil)
	m.Create("atlas-saga", "", "fantasy")

	dir := ws.ProjectDir("atlas-saga")
	os.WriteFile(filepath.Join(dir, DescriptorName), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, DescriptorName+".bak.1"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, DescriptorName+".bak.2"), []byte("x"), 0644)

	_, err := m.Load("atlas-saga")
	assert.ErrorIs(t, err, coreerrors.ErrStateCorrupt)
}
