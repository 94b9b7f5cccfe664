// Package config loads the workspace configuration file, overlaying
// YAML values onto built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	State     StateConfig     `yaml:"state"`
	Router    RouterConfig    `yaml:"router"`
	Session   SessionConfig   `yaml:"session"`
	Character CharacterConfig `yaml:"character"`
}

type StateConfig struct {
	// BackupCount is the number of rotating backup slots kept beside the
	// state document. Slot 1 is always the most recent.
	BackupCount int `yaml:"backup_count"`
}

type RouterConfig struct {
	// ConfidenceThreshold is the minimum normalized score required before
	// a classification commits to a single mode. Hand-tuned policy, not a
	// contract; override freely.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// ComparableMargin is the score gap under which book and session
	// signals are treated as tied, forcing a clarification.
	ComparableMargin float64 `yaml:"comparable_margin"`

	ContinuationPhrases []string `yaml:"continuation_phrases"`
	VibeWords           []string `yaml:"vibe_words"`
	SituationWords      []string `yaml:"situation_words"`
}

type SessionConfig struct {
	// ScaffoldDirs are created inside every new session directory.
	ScaffoldDirs []string `yaml:"scaffold_dirs"`

	// SceneDir is the scaffold subdirectory whose files count as scenes.
	SceneDir string `yaml:"scene_dir"`
}

type CharacterConfig struct {
	// CacheSize bounds the parsed-record cache per store.
	CacheSize int `yaml:"cache_size"`

	// StableSections are the section names copied on promote. The
	// session log is never part of this set.
	StableSections []string `yaml:"stable_sections"`
}

func Default() *Config {
	return &Config{
		State: StateConfig{
			BackupCount: 3,
		},
		Router: RouterConfig{
			ConfidenceThreshold: 0.6,
			ComparableMargin:    0.15,
			ContinuationPhrases: []string{
				"continue", "resume", "back to", "work on", "pick up",
			},
			VibeWords: []string{
				"dark", "cozy", "gritty", "romance", "noir", "fluffy",
				"angst", "slow burn", "enemies to lovers", "found family",
			},
			SituationWords: []string{
				"stranded", "trapped", "meet", "reunion", "heist",
				"interview", "wedding", "funeral", "road trip",
			},
		},
		Session: SessionConfig{
			ScaffoldDirs: []string{"scenes", "characters", "notes"},
			SceneDir:     "scenes",
		},
		Character: CharacterConfig{
			CacheSize: 128,
			StableSections: []string{
				"identity", "appearance", "personality", "voice", "background",
			},
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is
// not an error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize backfills values a partial file may have zeroed out.
func (c *Config) normalize() {
	def := Default()

	if c.State.BackupCount <= 0 {
		c.State.BackupCount = def.State.BackupCount
	}
	if c.Router.ConfidenceThreshold <= 0 {
		c.Router.ConfidenceThreshold = def.Router.ConfidenceThreshold
	}
	if c.Router.ComparableMargin <= 0 {
		c.Router.ComparableMargin = def.Router.ComparableMargin
	}
	if len(c.Session.ScaffoldDirs) == 0 {
		c.Session.ScaffoldDirs = def.Session.ScaffoldDirs
	}
	if c.Session.SceneDir == "" {
		c.Session.SceneDir = def.Session.SceneDir
	}
	if c.Character.CacheSize <= 0 {
		c.Character.CacheSize = def.Character.CacheSize
	}
	if len(c.Character.StableSections) == 0 {
		c.Character.StableSections = def.Character.StableSections
	}
}
