// Package cmd provides CLI commands for the Fable application.
// This file implements the project command for long-form project state.
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/adalundhe/fable/core/project"
)

// =============================================================================
// Project Command Flags
// =============================================================================

var (
	projectJSON       bool
	projectTitle      string
	projectGenre      string
	projectCharacters []string
	projectScene      string
	projectSection    string
	projectScenes     int
	projectWords      int
)

// =============================================================================
// Project Commands
// =============================================================================

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage long-form projects",
	Long: `Manage long-form book projects: plot threads, writing position,
character focus, and the per-session log.

Examples:
  fable project new atlas-saga --title "The Atlas Saga" --genre fantasy
  fable project show atlas-saga
  fable project thread add atlas-saga "Mira's betrayal" --characters mira,theo
  fable project thread status atlas-saga <thread-id> resolved --scene ch12-s3
  fable project position atlas-saga ch12-s4 --section "the crossing"
  fable project focus atlas-saga mira theo
  fable project arc atlas-saga "the long retreat"
  fable project end-session atlas-saga --scenes 3 --words 2400`,
}

var projectNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectNew,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show project state",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectThreadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage plot threads",
}

var projectThreadAddCmd = &cobra.Command{
	Use:   "add <project> <description>",
	Short: "Add a plot thread",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectThreadAdd,
}

var projectThreadStatusCmd = &cobra.Command{
	Use:   "status <project> <thread-id> <status>",
	Short: "Change a thread's status",
	Long: `Change a thread's status. Valid statuses are active, simmering,
resolved, and dropped. Resolved and dropped are terminal.`,
	Args: cobra.ExactArgs(3),
	RunE: runProjectThreadStatus,
}

var projectPositionCmd = &cobra.Command{
	Use:   "position <project> <scene>",
	Short: "Update the writing position",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectPosition,
}

var projectFocusCmd = &cobra.Command{
	Use:   "focus <project> <character>...",
	Short: "Set the character focus list",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runProjectFocus,
}

var projectArcCmd = &cobra.Command{
	Use:   "arc <project> <arc>",
	Short: "Set the current arc",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectArc,
}

var projectEndSessionCmd = &cobra.Command{
	Use:   "end-session <project>",
	Short: "Log the end of a writing session",
	Long:  `Append a session log entry and fold the word count delta into the project total.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectEndSession,
}

func init() {
	rootCmd.AddCommand(projectCmd)

	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectThreadCmd)
	projectCmd.AddCommand(projectPositionCmd)
	projectCmd.AddCommand(projectFocusCmd)
	projectCmd.AddCommand(projectArcCmd)
	projectCmd.AddCommand(projectEndSessionCmd)

	projectThreadCmd.AddCommand(projectThreadAddCmd)
	projectThreadCmd.AddCommand(projectThreadStatusCmd)

	projectCmd.PersistentFlags().BoolVar(&projectJSON, "json", false, "Output as JSON")

	projectNewCmd.Flags().StringVarP(&projectTitle, "title", "t", "", "Working title")
	projectNewCmd.Flags().StringVarP(&projectGenre, "genre", "g", "", "Genre")

	projectThreadAddCmd.Flags().StringSliceVarP(&projectCharacters, "characters", "c", nil, "Characters on the thread")
	projectThreadStatusCmd.Flags().StringVar(&projectScene, "scene", "", "Resolution scene (for resolved threads)")

	projectPositionCmd.Flags().StringVarP(&projectSection, "section", "s", "", "Section within the scene")

	projectEndSessionCmd.Flags().IntVar(&projectScenes, "scenes", 0, "Scenes written this session")
	projectEndSessionCmd.Flags().IntVar(&projectWords, "words", 0, "Word count delta this session")
}

// =============================================================================
// Project Execution
// =============================================================================

func runProjectNew(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	proj, err := app.projects.Create(args[0], projectTitle, projectGenre)
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), proj)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sCreated project%s %s%s%s\n",
		colorGreen, colorReset, colorBold, proj.Name, colorReset)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	names, err := app.projects.List()
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), names)
	}

	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	proj, err := app.projects.Load(args[0])
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), proj)
	}

	return outputProject(cmd.OutOrStdout(), proj)
}

func outputProject(w io.Writer, proj *project.Project) error {
	fmt.Fprintf(w, "%s%s%s%s", colorBold, colorCyan, proj.Name, colorReset)
	if proj.WorkingTitle != "" {
		fmt.Fprintf(w, " %s(%s)%s", colorGray, proj.WorkingTitle, colorReset)
	}
	fmt.Fprintln(w)

	if proj.Genre != "" {
		fmt.Fprintf(w, "%sGenre:%s      %s\n", colorGray, colorReset, proj.Genre)
	}
	fmt.Fprintf(w, "%sWords:%s      %d\n", colorGray, colorReset, proj.WordCount)

	if proj.Position.Scene != "" {
		fmt.Fprintf(w, "%sPosition:%s   %s", colorGray, colorReset, proj.Position.Scene)
		if proj.Position.Section != "" {
			fmt.Fprintf(w, " / %s", proj.Position.Section)
		}
		fmt.Fprintln(w)
	}
	if proj.CurrentArc != "" {
		fmt.Fprintf(w, "%sArc:%s        %s\n", colorGray, colorReset, proj.CurrentArc)
	}
	if len(proj.CharacterFocus) > 0 {
		fmt.Fprintf(w, "%sFocus:%s      %v\n", colorGray, colorReset, proj.CharacterFocus)
	}

	if len(proj.Threads) > 0 {
		fmt.Fprintf(w, "\n%sThreads%s\n", colorBold, colorReset)
		for _, thread := range proj.Threads {
			statusColor := colorGreen
			if thread.Status.IsTerminal() {
				statusColor = colorGray
			}
			fmt.Fprintf(w, "  %s[%s]%s %s %s%s%s\n",
				statusColor, thread.Status, colorReset,
				thread.Description, colorGray, thread.ID, colorReset)
		}
	}

	if len(proj.SessionLog) > 0 {
		fmt.Fprintf(w, "\n%sSessions%s\n", colorBold, colorReset)
		for _, entry := range proj.SessionLog {
			fmt.Fprintf(w, "  %s  %d scenes, %+d words\n",
				entry.Date.Format("2006-01-02"), entry.ScenesWritten, entry.WordCountDelta)
		}
	}

	return nil
}

func runProjectThreadAdd(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	thread, err := app.projects.AddThread(args[0], args[1], projectCharacters)
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), thread)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sAdded thread%s %s\n", colorGreen, colorReset, thread.ID)
	return nil
}

func runProjectThreadStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	thread, err := app.projects.UpdateThreadStatus(
		args[0], args[1], project.ThreadStatus(args[2]), projectScene)
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), thread)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Thread %s is now %s%s%s\n",
		thread.ID, colorBold, thread.Status, colorReset)
	return nil
}

func runProjectPosition(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	proj, err := app.projects.UpdatePosition(args[0], args[1], projectSection)
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), proj)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Position: %s\n", proj.Position.Scene)
	return nil
}

func runProjectFocus(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	proj, err := app.projects.UpdateCharacterFocus(args[0], args[1:])
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), proj)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Focus: %v\n", proj.CharacterFocus)
	return nil
}

func runProjectArc(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	proj, err := app.projects.UpdateCurrentArc(args[0], args[1])
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), proj)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Arc: %s\n", proj.CurrentArc)
	return nil
}

func runProjectEndSession(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	proj, err := app.projects.EndSession(args[0], projectScenes, projectWords)
	if err != nil {
		return err
	}

	if projectJSON {
		return outputJSON(cmd.OutOrStdout(), proj)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sSession logged.%s Total words: %d\n",
		colorGreen, colorReset, proj.WordCount)
	return nil
}
