// Package cmd provides CLI commands for the Fable application.
// This file implements the mode command for routing freeform input.
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/fable/core/router"
	"github.com/adalundhe/fable/core/statestore"
)

// =============================================================================
// Mode Command Flags
// =============================================================================

var (
	modeJSON   bool
	modeAnswer string
)

// =============================================================================
// Mode Commands
// =============================================================================

var modeCmd = &cobra.Command{
	Use:   "mode <input>...",
	Short: "Route freeform input to book or session mode",
	Long: `Classify freeform input and switch mode accordingly.

When the classifier cannot commit, the options are shown and one
clarification is read from stdin (or taken from --answer). An
unresolved clarification defaults to a fresh session.

Examples:
  fable mode continue
  fable mode back to atlas saga, chapter 12
  fable mode dark romance
  fable mode dark romance --answer "the book"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMode,
}

var modeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current mode",
	Args:  cobra.NoArgs,
	RunE:  runModeShow,
}

func init() {
	rootCmd.AddCommand(modeCmd)
	modeCmd.AddCommand(modeShowCmd)

	modeCmd.PersistentFlags().BoolVar(&modeJSON, "json", false, "Output as JSON")
	modeCmd.Flags().StringVar(&modeAnswer, "answer", "", "Clarification answer, skipping the interactive prompt")
}

// =============================================================================
// Mode Execution
// =============================================================================

func runMode(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	input := strings.Join(args, " ")
	result, doc, err := app.switcher.Route(input)
	if err != nil {
		return err
	}

	if result.Mode == router.ModeAmbiguous {
		result, doc, err = clarify(cmd, app, result)
		if err != nil {
			return err
		}
	}

	if modeJSON {
		return outputJSON(cmd.OutOrStdout(), result)
	}

	return outputModeResult(cmd.OutOrStdout(), result, doc)
}

// clarify resolves an ambiguous classification with --answer or one
// interactive prompt.
func clarify(cmd *cobra.Command, app *app, prev *router.Result) (*router.Result, *statestore.Document, error) {
	answer := modeAnswer
	if answer == "" {
		outputOptions(cmd.OutOrStdout(), prev)
		fmt.Fprint(cmd.OutOrStdout(), "> ")

		scanner := bufio.NewScanner(cmd.InOrStdin())
		if scanner.Scan() {
			answer = strings.TrimSpace(scanner.Text())
		}
	}

	return app.switcher.Resolve(prev, answer)
}

func outputOptions(w io.Writer, result *router.Result) {
	fmt.Fprintf(w, "%sNot sure which mode you mean%s", colorYellow, colorReset)
	if result.Reason != "" {
		fmt.Fprintf(w, " %s(%s)%s", colorGray, result.Reason, colorReset)
	}
	fmt.Fprintln(w, ":")

	for i, opt := range result.Options {
		fmt.Fprintf(w, "  %d. %s", i+1, opt.Label)
		if opt.Target != "" {
			fmt.Fprintf(w, " %s(%s)%s", colorGray, opt.Target, colorReset)
		}
		fmt.Fprintln(w)
	}
}

func outputModeResult(w io.Writer, result *router.Result, doc *statestore.Document) error {
	switch result.Mode {
	case router.ModeBook:
		fmt.Fprintf(w, "%sBook mode%s on %s%s%s", colorGreen, colorReset,
			colorBold, result.Target, colorReset)
	case router.ModeSession:
		fmt.Fprintf(w, "%sSession mode%s", colorGreen, colorReset)
		if result.Target != "" {
			fmt.Fprintf(w, " on %s%s%s", colorBold, result.Target, colorReset)
		}
	default:
		fmt.Fprintf(w, "%sStill ambiguous%s", colorYellow, colorReset)
	}
	fmt.Fprintf(w, " %s(confidence %.2f)%s\n", colorGray, result.Confidence, colorReset)

	if doc != nil && doc.ActiveProject != "" {
		fmt.Fprintf(w, "%sActive project:%s %s\n", colorGray, colorReset, doc.ActiveProject)
	}
	return nil
}

func runModeShow(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	doc, err := app.state.Read()
	if err != nil {
		return err
	}

	if modeJSON {
		return outputJSON(cmd.OutOrStdout(), doc)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sMode:%s           %s\n", colorGray, colorReset, doc.Mode)
	if doc.ActiveProject != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%sActive project:%s %s\n", colorGray, colorReset, doc.ActiveProject)
	}
	if n := len(doc.SwitchHistory); n > 0 {
		last := doc.SwitchHistory[n-1]
		fmt.Fprintf(cmd.OutOrStdout(), "%sLast switch:%s    %s %s (%s)\n",
			colorGray, colorReset, last.Mode, last.Target,
			last.SwitchedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
