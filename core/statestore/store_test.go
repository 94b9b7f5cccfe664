package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	coreerrors "github.com/adalundhe/fable/core/errors"
)

func newTestStore(t *testing.T, backups int) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state.json"), backups, nil)
}

func docWithProject(name string) *Document {
	doc := DefaultDocument()
	doc.AppendSwitch(ModeBook, name)
	return doc
}

func TestFirstRunReturnsDefaults(t *testing.T) {
	store := newTestStore(t, 3)

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if doc.Mode != "" || doc.ActiveProject != "" {
		t.Errorf("default document not empty: mode=%q project=%q", doc.Mode, doc.ActiveProject)
	}
	if len(doc.SwitchHistory) != 0 {
		t.Errorf("default history length = %d", len(doc.SwitchHistory))
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t, 3)

	if err := store.Write(docWithProject("atlas-saga")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if doc.ActiveProject != "atlas-saga" {
		t.Errorf("ActiveProject = %q, want atlas-saga", doc.ActiveProject)
	}
	if doc.Mode != ModeBook {
		t.Errorf("Mode = %q, want book", doc.Mode)
	}
	if len(doc.SwitchHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(doc.SwitchHistory))
	}
	if doc.SwitchHistory[0].ID == "" {
		t.Error("switch entry missing id")
	}
}

func TestBackupRecoveryAfterCorruptPrimary(t *testing.T) {
	store := newTestStore(t, 3)

	// N+1 successive writes, then corrupt the primary. Slot 1 holds the
	// state displaced by write #4, which is write #3.
	for i := 1; i <= 4; i++ {
		if err := store.Write(docWithProject(fmt.Sprintf("draft-%d", i))); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	if err := os.WriteFile(store.Path(), []byte("{{{not json"), 0644); err != nil {
		t.Fatalf("corrupt primary: %v", err)
	}

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if doc.ActiveProject != "draft-3" {
		t.Errorf("recovered project = %q, want draft-3 (most recent backup)", doc.ActiveProject)
	}
}

func TestRecoveryScansSlotsInOrder(t *testing.T) {
	store := newTestStore(t, 3)

	for i := 1; i <= 3; i++ {
		if err := store.Write(docWithProject(fmt.Sprintf("draft-%d", i))); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	// After three writes slot 1 holds draft-2 and slot 2 holds draft-1.
	// Corrupting the primary and slot 1 leaves slot 2 to win.
	os.WriteFile(store.Path(), []byte("corrupt"), 0644)
	os.WriteFile(store.BackupPath(1), []byte("corrupt"), 0644)

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if doc.ActiveProject != "draft-1" {
		t.Errorf("recovered project = %q, want draft-1", doc.ActiveProject)
	}
}

func TestAllSlotsCorruptFailsStateCorrupt(t *testing.T) {
	store := newTestStore(t, 2)

	for i := 1; i <= 3; i++ {
		store.Write(docWithProject(fmt.Sprintf("draft-%d", i)))
	}

	os.WriteFile(store.Path(), []byte("x"), 0644)
	os.WriteFile(store.BackupPath(1), []byte("x"), 0644)
	os.WriteFile(store.BackupPath(2), []byte("x"), 0644)

	_, err := store.Read()
	if !errors.Is(err, coreerrors.ErrStateCorrupt) {
		t.Errorf("err = %v, want state_corrupt", err)
	}
}

func TestBackupRotationDropsOldest(t *testing.T) {
	store := newTestStore(t, 2)

	for i := 1; i <= 4; i++ {
		if err := store.Write(docWithProject(fmt.Sprintf("draft-%d", i))); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	slot1, err := store.readBackupSlot(1)
	if err != nil {
		t.Fatalf("slot 1 unreadable: %v", err)
	}
	if slot1.ActiveProject != "draft-3" {
		t.Errorf("slot 1 = %q, want draft-3", slot1.ActiveProject)
	}

	slot2, err := store.readBackupSlot(2)
	if err != nil {
		t.Fatalf("slot 2 unreadable: %v", err)
	}
	if slot2.ActiveProject != "draft-2" {
		t.Errorf("slot 2 = %q, want draft-2 (oldest kept)", slot2.ActiveProject)
	}

	if _, err := os.Stat(store.BackupPath(3)); !os.IsNotExist(err) {
		t.Error("slot 3 should not exist with backupCount=2")
	}
}

func TestRestoreRollsBackToSlot(t *testing.T) {
	store := newTestStore(t, 3)

	store.Write(docWithProject("draft-1"))
	store.Write(docWithProject("draft-2"))

	doc, err := store.Restore(1)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if doc.ActiveProject != "draft-1" {
		t.Errorf("restored project = %q, want draft-1", doc.ActiveProject)
	}

	// The restore itself is durable.
	reread, err := store.Read()
	if err != nil {
		t.Fatalf("Read after restore failed: %v", err)
	}
	if reread.ActiveProject != "draft-1" {
		t.Errorf("reread project = %q, want draft-1", reread.ActiveProject)
	}
}

func TestRestoreRejectsBadSlot(t *testing.T) {
	store := newTestStore(t, 3)

	if _, err := store.Restore(0); !errors.Is(err, coreerrors.ErrValidation) {
		t.Errorf("Restore(0) err = %v, want validation", err)
	}
	if _, err := store.Restore(4); !errors.Is(err, coreerrors.ErrValidation) {
		t.Errorf("Restore(4) err = %v, want validation", err)
	}
	if _, err := store.Restore(2); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Errorf("Restore(empty slot) err = %v, want not_found", err)
	}
}

func TestListBackupsReportsValidity(t *testing.T) {
	store := newTestStore(t, 2)

	store.Write(docWithProject("draft-1"))
	store.Write(docWithProject("draft-2"))
	os.WriteFile(store.BackupPath(2), []byte("garbage"), 0644)

	infos := store.ListBackups()
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
	if !infos[0].Valid {
		t.Error("slot 1 should be valid")
	}
	if infos[1].Valid {
		t.Error("slot 2 should be invalid after corruption")
	}
}

func TestUpdateAppliesAndPersists(t *testing.T) {
	store := newTestStore(t, 3)

	_, err := store.Update(func(doc *Document) error {
		doc.AppendSwitch(ModeSession, "fantasy/night-market")
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if doc.Mode != ModeSession {
		t.Errorf("Mode = %q, want session", doc.Mode)
	}
	// Session switches never claim the active project.
	if doc.ActiveProject != "" {
		t.Errorf("ActiveProject = %q, want empty", doc.ActiveProject)
	}
}

func TestForeignTopLevelFieldsSurviveRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := New(path, 3, nil)

	// Another tool wrote extension fields at the document's top level.
	seed := `{"active_project":"atlas-saga","mode":"book","switch_history":[],` +
		`"last_scene":"ch12-s3","word_goal":50000}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatalf("seed state file: %v", err)
	}

	doc, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := string(doc.Extra["last_scene"]); got != `"ch12-s3"` {
		t.Errorf("Extra[last_scene] = %s", got)
	}

	doc.AppendSwitch(ModeSession, "coffee-shop")
	if err := store.Write(doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reread, err := store.Read()
	if err != nil {
		t.Fatalf("Read after rewrite failed: %v", err)
	}
	if got := string(reread.Extra["last_scene"]); got != `"ch12-s3"` {
		t.Errorf("last_scene lost across rewrite: Extra = %v", reread.Extra)
	}
	if got := string(reread.Extra["word_goal"]); got != "50000" {
		t.Errorf("word_goal lost across rewrite: Extra = %v", reread.Extra)
	}
	if reread.Mode != ModeSession {
		t.Errorf("Mode = %q, want %q", reread.Mode, ModeSession)
	}
}

func TestExtraNeverShadowsOwnedFields(t *testing.T) {
	doc := DefaultDocument()
	doc.AppendSwitch(ModeBook, "atlas-saga")
	doc.Extra = map[string]json.RawMessage{
		"mode":  json.RawMessage(`"session"`),
		"notes": json.RawMessage(`"keep me"`),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Mode != ModeBook {
		t.Errorf("Mode = %q, owned field shadowed by Extra", decoded.Mode)
	}
	if got := string(decoded.Extra["notes"]); got != `"keep me"` {
		t.Errorf("Extra[notes] = %s", got)
	}
	if _, leaked := decoded.Extra["mode"]; leaked {
		t.Error("owned key leaked into Extra after round trip")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc := docWithProject("atlas-saga")
	clone := doc.Clone()

	clone.AppendSwitch(ModeSession, "other")
	if doc.Mode != ModeBook {
		t.Error("mutating clone changed original mode")
	}
	if len(doc.SwitchHistory) != 1 {
		t.Error("mutating clone changed original history")
	}
}
