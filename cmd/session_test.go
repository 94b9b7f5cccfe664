package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// testCommand returns a bare command with a captured output buffer.
func testCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

// setTestHome points the workspace at a throwaway directory.
func setTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	rootHome = home
	t.Cleanup(func() { rootHome = "" })
	return home
}

func TestSessionNewScaffoldsAndReports(t *testing.T) {
	home := setTestHome(t)
	cmd, buf := testCommand(t)

	if err := runSessionNew(cmd, []string{"fantasy", "night-market"}); err != nil {
		t.Fatalf("runSessionNew() error = %v", err)
	}

	if !strings.Contains(buf.String(), "fantasy/night-market") {
		t.Errorf("output %q missing session name", buf.String())
	}

	scenes := filepath.Join(home, "sessions", "fantasy", "night-market", "scenes")
	if _, err := os.Stat(scenes); err != nil {
		t.Errorf("scaffold dir missing: %v", err)
	}
}

func TestSessionListGroupsByGenre(t *testing.T) {
	setTestHome(t)

	cmd, _ := testCommand(t)
	if err := runSessionNew(cmd, []string{"fantasy", "night-market"}); err != nil {
		t.Fatalf("runSessionNew() error = %v", err)
	}
	if err := runSessionNew(cmd, []string{"scifi", "cold-orbit"}); err != nil {
		t.Fatalf("runSessionNew() error = %v", err)
	}

	cmd, buf := testCommand(t)
	if err := runSessionList(cmd, nil); err != nil {
		t.Fatalf("runSessionList() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"fantasy", "scifi", "night-market", "cold-orbit"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSessionArchiveAddsDatePrefix(t *testing.T) {
	setTestHome(t)

	cmd, _ := testCommand(t)
	if err := runSessionNew(cmd, []string{"fantasy", "night-market"}); err != nil {
		t.Fatalf("runSessionNew() error = %v", err)
	}

	cmd, buf := testCommand(t)
	if err := runSessionArchive(cmd, []string{"night-market"}); err != nil {
		t.Fatalf("runSessionArchive() error = %v", err)
	}

	prefix := time.Now().UTC().Format("2006-01-02")
	if !strings.Contains(buf.String(), prefix+"-night-market") {
		t.Errorf("output %q missing date-prefixed name", buf.String())
	}
}

func TestSessionResumeUnknownFails(t *testing.T) {
	setTestHome(t)
	cmd, _ := testCommand(t)

	if err := runSessionResume(cmd, []string{"nothing-here"}); err == nil {
		t.Fatal("runSessionResume() succeeded for unknown session")
	}
}
