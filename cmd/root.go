// Package cmd provides CLI commands for the Fable application.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adalundhe/fable/core/character"
	"github.com/adalundhe/fable/core/config"
	"github.com/adalundhe/fable/core/mode"
	"github.com/adalundhe/fable/core/project"
	"github.com/adalundhe/fable/core/router"
	"github.com/adalundhe/fable/core/session"
	"github.com/adalundhe/fable/core/statestore"
	"github.com/adalundhe/fable/core/storage"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

var (
	rootHome    string
	rootVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fable",
	Short: "Fable - A creative writing session coordinator",
	Long: `Fable coordinates long-form book projects and one-off writing
sessions from a single workspace: it routes freeform input to the right
mode, tracks project threads and position, and keeps session characters
promotable into a shared library.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootHome, "home", "", "Workspace root (defaults to $FABLE_HOME or ~/.fable)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Verbose logging")
}

func Execute() error {
	return rootCmd.Execute()
}

// =============================================================================
// Application Wiring
// =============================================================================

// app bundles the stores and managers every command works against.
type app struct {
	ws         *storage.Workspace
	cfg        *config.Config
	logger     *slog.Logger
	state      *statestore.Store
	sessions   *session.Manager
	projects   *project.Manager
	characters *character.Store
	switcher   *mode.Switcher
}

// newApp resolves the workspace and wires the full stack.
func newApp() (*app, error) {
	ws := storage.Resolve()
	if rootHome != "" {
		ws = storage.At(rootHome)
	}
	return newAppAt(ws)
}

// newAppAt wires the stack over an explicit workspace.
func newAppAt(ws *storage.Workspace) (*app, error) {
	if err := ws.EnsureLayout(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(ws.ConfigFile())
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if rootVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	state := statestore.New(ws.StateFile(), cfg.State.BackupCount, logger)
	projects := project.NewManager(ws, logger)
	sessions := session.NewManager(ws, session.Options{
		ScaffoldDirs: cfg.Session.ScaffoldDirs,
		SceneDir:     cfg.Session.SceneDir,
		Logger:       logger,
	})
	characters := character.NewStore(character.Options{
		CacheSize:      cfg.Character.CacheSize,
		StableSections: cfg.Character.StableSections,
		Logger:         logger,
	})
	r := router.New(router.Config{
		ConfidenceThreshold: cfg.Router.ConfidenceThreshold,
		ComparableMargin:    cfg.Router.ComparableMargin,
		ContinuationPhrases: cfg.Router.ContinuationPhrases,
		VibeWords:           cfg.Router.VibeWords,
		SituationWords:      cfg.Router.SituationWords,
	}, projects, state, logger)

	return &app{
		ws:         ws,
		cfg:        cfg,
		logger:     logger,
		state:      state,
		sessions:   sessions,
		projects:   projects,
		characters: characters,
		switcher:   mode.New(r, sessions, projects, state, logger),
	}, nil
}
