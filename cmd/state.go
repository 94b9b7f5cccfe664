// Package cmd provides CLI commands for the Fable application.
// This file implements the state command for the global state document
// and its backup slots.
package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	coreerrors "github.com/adalundhe/fable/core/errors"
)

var stateJSON bool

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and repair the state document",
	Long: `Inspect the global state document and its rotating backup slots.

Slot 1 always holds the state displaced by the most recent write.

Examples:
  fable state backups
  fable state restore 2`,
}

var stateBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backup slots",
	Args:  cobra.NoArgs,
	RunE:  runStateBackups,
}

var stateRestoreCmd = &cobra.Command{
	Use:   "restore <slot>",
	Short: "Restore the state document from a backup slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateRestore,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateBackupsCmd)
	stateCmd.AddCommand(stateRestoreCmd)

	stateCmd.PersistentFlags().BoolVar(&stateJSON, "json", false, "Output as JSON")
}

func runStateBackups(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	infos := app.state.ListBackups()

	if stateJSON {
		return outputJSON(cmd.OutOrStdout(), infos)
	}

	for _, info := range infos {
		if info.Size == 0 && info.ModTime == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d  %s(empty)%s\n", info.Slot, colorGray, colorReset)
			continue
		}

		validity := fmt.Sprintf("%svalid%s", colorGreen, colorReset)
		if !info.Valid {
			validity = fmt.Sprintf("%scorrupt%s", colorRed, colorReset)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d  %-8s %6d bytes  %s\n",
			info.Slot, validity, info.Size,
			time.Unix(info.ModTime, 0).Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runStateRestore(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return coreerrors.Newf(coreerrors.KindValidation, "slot %q is not a number", args[0])
	}

	doc, err := app.state.Restore(slot)
	if err != nil {
		return err
	}

	if stateJSON {
		return outputJSON(cmd.OutOrStdout(), doc)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%sRestored%s from slot %d (mode %s)\n",
		colorGreen, colorReset, slot, doc.Mode)
	return nil
}
