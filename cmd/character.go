// Package cmd provides CLI commands for the Fable application.
// This file implements the character command for character records and
// the shared library.
package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/fable/core/character"
	coreerrors "github.com/adalundhe/fable/core/errors"
)

// =============================================================================
// Character Command Flags
// =============================================================================

var (
	characterJSON      bool
	characterSession   string
	characterRole      string
	characterStatus    string
	characterTags      []string
	characterSections  []string
	characterOverwrite bool
)

// =============================================================================
// Character Commands
// =============================================================================

var characterCmd = &cobra.Command{
	Use:   "character",
	Short: "Manage character records",
	Long: `Manage character records in a session or in the shared library.

Without --session, commands operate on the library. Promote copies a
session character's stable sections into the library; import copies a
library character into a session, dropping its session log.

Examples:
  fable character new "Mira Chen" --session night-market --role protagonist
  fable character show mira-chen --session night-market
  fable character update mira-chen --section voice="clipped, wry"
  fable character promote mira-chen --session night-market
  fable character import mira-chen --session winter-court
  fable character list`,
}

var characterNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a character",
	Args:  cobra.ExactArgs(1),
	RunE:  runCharacterNew,
}

var characterShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show a character record",
	Args:  cobra.ExactArgs(1),
	RunE:  runCharacterShow,
}

var characterUpdateCmd = &cobra.Command{
	Use:   "update <slug>",
	Short: "Update a character's metadata or sections",
	Args:  cobra.ExactArgs(1),
	RunE:  runCharacterUpdate,
}

var characterDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a character record",
	Args:  cobra.ExactArgs(1),
	RunE:  runCharacterDelete,
}

var characterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List characters",
	Args:  cobra.NoArgs,
	RunE:  runCharacterList,
}

var characterPromoteCmd = &cobra.Command{
	Use:   "promote <slug>",
	Short: "Promote a session character into the library",
	Long: `Copy a session character's stable sections into the shared library.
An existing library record is merged: its non-empty sections win, tags
are unioned, and the session is recorded as an origin.`,
	Args: cobra.ExactArgs(1),
	RunE: runCharacterPromote,
}

var characterImportCmd = &cobra.Command{
	Use:   "import <slug>",
	Short: "Import a library character into a session",
	Long: `Copy a library character into a session. The copy starts with an
empty session log. An existing session record with the same slug fails
unless --overwrite is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runCharacterImport,
}

func init() {
	rootCmd.AddCommand(characterCmd)

	characterCmd.AddCommand(characterNewCmd)
	characterCmd.AddCommand(characterShowCmd)
	characterCmd.AddCommand(characterUpdateCmd)
	characterCmd.AddCommand(characterDeleteCmd)
	characterCmd.AddCommand(characterListCmd)
	characterCmd.AddCommand(characterPromoteCmd)
	characterCmd.AddCommand(characterImportCmd)

	characterCmd.PersistentFlags().BoolVar(&characterJSON, "json", false, "Output as JSON")
	characterCmd.PersistentFlags().StringVarP(&characterSession, "session", "s", "", "Operate on a session's characters instead of the library")

	for _, c := range []*cobra.Command{characterNewCmd, characterUpdateCmd} {
		c.Flags().StringVar(&characterRole, "role", "", "Character role")
		c.Flags().StringVar(&characterStatus, "status", "", "Character status")
		c.Flags().StringSliceVar(&characterTags, "tags", nil, "Tags")
		c.Flags().StringArrayVar(&characterSections, "section", nil, "Section content as key=value (repeatable)")
	}

	characterImportCmd.Flags().BoolVar(&characterOverwrite, "overwrite", false, "Replace an existing session record")
}

// =============================================================================
// Character Execution
// =============================================================================

// characterDir resolves the directory the command operates on: the
// session's characters directory when --session is set, the shared
// library otherwise.
func characterDir(app *app) (string, error) {
	if characterSession == "" {
		return app.ws.Library(), nil
	}

	sess, err := app.sessions.Resolve(characterSession)
	if err != nil {
		return "", err
	}
	return app.sessions.CharactersDir(sess), nil
}

// characterPatch builds the metadata patch from the shared flags. Unset
// flags leave the corresponding field untouched.
func characterPatch(cmd *cobra.Command) *character.MetadataPatch {
	patch := &character.MetadataPatch{}
	if cmd.Flags().Changed("role") {
		patch.Role = &characterRole
	}
	if cmd.Flags().Changed("status") {
		patch.Status = &characterStatus
	}
	if cmd.Flags().Changed("tags") {
		patch.Tags = &characterTags
	}
	return patch
}

// characterSectionMap parses repeated --section key=value flags.
func characterSectionMap() (map[string]string, error) {
	if len(characterSections) == 0 {
		return nil, nil
	}

	sections := make(map[string]string, len(characterSections))
	for _, raw := range characterSections {
		key, value, found := strings.Cut(raw, "=")
		if !found {
			return nil, coreerrors.Newf(coreerrors.KindValidation,
				"section %q is not key=value", raw)
		}
		sections[key] = value
	}
	return sections, nil
}

func runCharacterNew(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	dir, err := characterDir(app)
	if err != nil {
		return err
	}

	sections, err := characterSectionMap()
	if err != nil {
		return err
	}

	rec, err := app.characters.Create(dir, args[0], characterPatch(cmd), sections)
	if err != nil {
		return err
	}

	if characterJSON {
		return outputJSON(cmd.OutOrStdout(), rec)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sCreated%s %s%s%s\n",
		colorGreen, colorReset, colorBold, rec.Slug(), colorReset)
	return nil
}

func runCharacterShow(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	dir, err := characterDir(app)
	if err != nil {
		return err
	}

	rec, err := app.characters.Read(dir, args[0])
	if err != nil {
		return err
	}

	if characterJSON {
		return outputJSON(cmd.OutOrStdout(), rec)
	}

	return outputCharacter(cmd.OutOrStdout(), rec)
}

func outputCharacter(w io.Writer, rec *character.Record) error {
	fmt.Fprintf(w, "%s%s%s%s", colorBold, colorCyan, rec.Name, colorReset)
	if rec.Role != "" {
		fmt.Fprintf(w, " %s(%s)%s", colorGray, rec.Role, colorReset)
	}
	fmt.Fprintln(w)

	if rec.Status != "" {
		fmt.Fprintf(w, "%sStatus:%s %s\n", colorGray, colorReset, rec.Status)
	}
	if len(rec.Tags) > 0 {
		fmt.Fprintf(w, "%sTags:%s   %s\n", colorGray, colorReset, strings.Join(rec.Tags, ", "))
	}
	if len(rec.OriginSessions) > 0 {
		fmt.Fprintf(w, "%sOrigin:%s %s\n", colorGray, colorReset, strings.Join(rec.OriginSessions, ", "))
	}
	if rec.ImportedFrom != "" {
		fmt.Fprintf(w, "%sImported from:%s %s\n", colorGray, colorReset, rec.ImportedFrom)
	}

	keys := make([]string, 0, len(rec.Sections))
	for key := range rec.Sections {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(w, "\n%s%s%s\n%s\n", colorBold, key, colorReset, rec.Sections[key])
	}
	return nil
}

func runCharacterUpdate(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	dir, err := characterDir(app)
	if err != nil {
		return err
	}

	sections, err := characterSectionMap()
	if err != nil {
		return err
	}

	rec, err := app.characters.Update(dir, args[0], characterPatch(cmd), sections)
	if err != nil {
		return err
	}

	if characterJSON {
		return outputJSON(cmd.OutOrStdout(), rec)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sUpdated%s %s\n", colorGreen, colorReset, rec.Slug())
	return nil
}

func runCharacterDelete(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	dir, err := characterDir(app)
	if err != nil {
		return err
	}

	if err := app.characters.Delete(dir, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sDeleted%s %s\n", colorYellow, colorReset, args[0])
	return nil
}

func runCharacterList(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	dir, err := characterDir(app)
	if err != nil {
		return err
	}

	manifest, err := app.characters.List(dir)
	if err != nil {
		return err
	}

	if characterJSON {
		return outputJSON(cmd.OutOrStdout(), manifest)
	}

	if len(manifest.Characters) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No characters.")
		return nil
	}

	for _, slug := range manifest.Slugs() {
		summary := manifest.Characters[slug]
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s%s%s", slug, colorGray, summary.Role, colorReset)
		if len(summary.Tags) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%s]", strings.Join(summary.Tags, ", "))
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runCharacterPromote(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	if characterSession == "" {
		return coreerrors.New(coreerrors.KindValidation, "promote requires --session")
	}

	sess, err := app.sessions.Resolve(characterSession)
	if err != nil {
		return err
	}

	rec, err := app.characters.Promote(
		app.sessions.CharactersDir(sess), args[0], app.ws.Library())
	if err != nil {
		return err
	}

	if characterJSON {
		return outputJSON(cmd.OutOrStdout(), rec)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sPromoted%s %s to the library\n",
		colorGreen, colorReset, rec.Slug())
	return nil
}

func runCharacterImport(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	if characterSession == "" {
		return coreerrors.New(coreerrors.KindValidation, "import requires --session")
	}

	sess, err := app.sessions.Resolve(characterSession)
	if err != nil {
		return err
	}

	rec, err := app.characters.Import(
		app.ws.Library(), args[0], app.sessions.CharactersDir(sess), characterOverwrite)
	if err != nil {
		return err
	}

	if characterJSON {
		return outputJSON(cmd.OutOrStdout(), rec)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sImported%s %s into %s\n",
		colorGreen, colorReset, rec.Slug(), sess.Name)
	return nil
}
