// Package cmd provides CLI commands for the Fable application.
// This file implements the session command for session lifecycle.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adalundhe/fable/core/session"
	"github.com/adalundhe/fable/core/statestore"
)

// =============================================================================
// Session Command Flags
// =============================================================================

var (
	sessionGenre string
	sessionJSON  bool
)

// =============================================================================
// Session Commands
// =============================================================================

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage writing sessions",
	Long: `Manage one-off writing sessions, grouped by genre.

Each genre holds at most one active session; starting a new one archives
the previous session under a date prefix.

Examples:
  fable session new fantasy night-market
  fable session list
  fable session list --genre "fan*"
  fable session archive night-market
  fable session resume night
  fable session resume 2026-08-12-night-market`,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new <genre> <name>",
	Short: "Start a new session",
	Long: `Start a new session in a genre.

If the genre already has an active session it is archived first under
today's date prefix.`,
	Args: cobra.ExactArgs(2),
	RunE: runSessionNew,
}

var sessionArchiveCmd = &cobra.Command{
	Use:   "archive <name>",
	Short: "Archive a session",
	Long:  `Archive a session under today's date prefix. Archiving an already archived session is a no-op.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionArchive,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume <name>",
	Short: "Resume a session by name or partial match",
	Long: `Resolve a session by exact name, archived name, or unique substring
and switch the workspace into session mode on it.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionResume,
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionArchiveCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionResumeCmd)

	sessionCmd.PersistentFlags().BoolVar(&sessionJSON, "json", false, "Output as JSON")
	sessionListCmd.Flags().StringVarP(&sessionGenre, "genre", "g", "", "Genre filter (glob)")
}

// =============================================================================
// Session Execution
// =============================================================================

func runSessionNew(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	sess, err := app.sessions.Create(args[0], args[1])
	if err != nil {
		return err
	}

	if _, err := app.switcher.Switch(statestore.ModeSession, sess.Name); err != nil {
		return err
	}

	if sessionJSON {
		return outputJSON(cmd.OutOrStdout(), sess)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sStarted session%s %s%s/%s%s\n",
		colorGreen, colorReset, colorBold, sess.Genre, sess.Name, colorReset)
	return nil
}

func runSessionArchive(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	sess, err := app.sessions.Resolve(args[0])
	if err != nil {
		return err
	}

	archived, err := app.sessions.Archive(sess)
	if err != nil {
		return err
	}

	if sessionJSON {
		return outputJSON(cmd.OutOrStdout(), archived)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sArchived%s %s/%s\n",
		colorYellow, colorReset, archived.Genre, archived.Name)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	sessions, err := app.sessions.List(sessionGenre)
	if err != nil {
		return err
	}

	if sessionJSON {
		return outputJSON(cmd.OutOrStdout(), sessions)
	}

	return outputSessionTable(cmd.OutOrStdout(), sessions)
}

func outputSessionTable(w io.Writer, sessions []*session.Session) error {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}

	genre := ""
	for _, sess := range sessions {
		if sess.Genre != genre {
			genre = sess.Genre
			fmt.Fprintf(w, "%s%s%s\n", colorBold, genre, colorReset)
		}

		status := fmt.Sprintf("%s%s%s", colorGreen, sess.Status, colorReset)
		if sess.Status == session.StatusArchived {
			status = fmt.Sprintf("%s%s%s", colorGray, sess.Status, colorReset)
		}

		fmt.Fprintf(w, "  %-40s %s  %s%d scenes%s\n",
			sess.Name, status, colorGray, sess.SceneCount, colorReset)
	}
	return nil
}

func runSessionResume(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	sess, err := app.sessions.Resolve(args[0])
	if err != nil {
		return err
	}

	if _, err := app.switcher.Switch(statestore.ModeSession, sess.Name); err != nil {
		return err
	}

	if sessionJSON {
		return outputJSON(cmd.OutOrStdout(), sess)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sResumed%s %s/%s (%s)\n",
		colorGreen, colorReset, sess.Genre, sess.Name, sess.Status)
	return nil
}

// outputJSON writes any value as indented JSON.
func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
