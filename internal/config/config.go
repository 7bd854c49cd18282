// Package config provides functionality for loading shell configuration
// parameters from a config file using the Viper library. It defines terminal
// behavior, prompt appearance, background job handling and logging.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Config holds all configurable settings for the shell.
type Config struct {
	Terminal Terminal `mapstructure:"terminal"` // Terminal-related settings
	Prompt   Prompt   `mapstructure:"prompt"`   // Prompt appearance settings
	Jobs     Jobs     `mapstructure:"jobs"`     // Background job settings
	Log      Log      `mapstructure:"log"`      // Diagnostic logging
}

// Terminal defines settings related to terminal behavior, such as history
// file, history limit, interrupt and exit prompts.
type Terminal struct {
	HistoryFile     string `mapstructure:"history_file"`     // Path to shell history file
	HistoryLimit    int    `mapstructure:"history_limit"`    // Maximum number of history entries
	InterruptPrompt string `mapstructure:"interrupt_prompt"` // Text shown on Ctrl-C
	EOFPrompt       string `mapstructure:"exit_message"`     // Text shown on EOF/exit
}

// Prompt defines settings related to the shell prompt appearance.
type Prompt struct {
	Theme            string `mapstructure:"theme"`              // Prompt theme name
	PathColour       string `mapstructure:"path_colour"`        // Color for current path
	PathColourBold   bool   `mapstructure:"path_colour_bold"`   // Bold style for path
	StatusColour     string `mapstructure:"status_colour"`      // Color for a failed status
	StatusColourBold bool   `mapstructure:"status_colour_bold"` // Bold style for status
	JobsColour       string `mapstructure:"jobs_colour"`        // Color for the background job count
}

// Jobs defines how background jobs are announced and collected.
type Jobs struct {
	Notify     bool `mapstructure:"notify"`       // Print "[n] pgid" and "[n]+ Done" notices
	WaitOnExit bool `mapstructure:"wait_on_exit"` // Reap every background job before exiting
}

// Log defines the diagnostic log level: debug, info, warn or error.
type Log struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a file named "config" (any format Viper
// understands) in dir on fs, and unmarshals it over the defaults. Returns
// a Config holding the defaults and an error if loading or unmarshaling
// fails.
func Load(fs afero.Fs, dir string) (*Config, error) {

	v := viper.New()
	v.SetFs(fs)
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	setDefaults(v)

	cfg := Default()

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return Default(), fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers the Default values with v so keys missing from the
// file keep them.
func setDefaults(v *viper.Viper) {

	d := Default()

	v.SetDefault("terminal.history_file", d.Terminal.HistoryFile)
	v.SetDefault("terminal.history_limit", d.Terminal.HistoryLimit)
	v.SetDefault("terminal.interrupt_prompt", d.Terminal.InterruptPrompt)
	v.SetDefault("terminal.exit_message", d.Terminal.EOFPrompt)

	v.SetDefault("prompt.theme", d.Prompt.Theme)
	v.SetDefault("prompt.path_colour", d.Prompt.PathColour)
	v.SetDefault("prompt.path_colour_bold", d.Prompt.PathColourBold)
	v.SetDefault("prompt.status_colour", d.Prompt.StatusColour)
	v.SetDefault("prompt.status_colour_bold", d.Prompt.StatusColourBold)
	v.SetDefault("prompt.jobs_colour", d.Prompt.JobsColour)

	v.SetDefault("jobs.notify", d.Jobs.Notify)
	v.SetDefault("jobs.wait_on_exit", d.Jobs.WaitOnExit)

	v.SetDefault("log.level", d.Log.Level)

}

// Default returns a Config with sensible default settings. It is used
// as a fallback when loading a configuration file fails.
func Default() *Config {

	cfg := new(Config)

	cfg.Terminal.HistoryFile = filepath.Join(os.Getenv("HOME"), ".jobsh_history")
	cfg.Terminal.HistoryLimit = 1000
	cfg.Terminal.InterruptPrompt = "^C"
	cfg.Terminal.EOFPrompt = "exit"

	cfg.Prompt.Theme = "default"
	cfg.Prompt.PathColour = "green"
	cfg.Prompt.PathColourBold = false
	cfg.Prompt.StatusColour = "red"
	cfg.Prompt.StatusColourBold = true
	cfg.Prompt.JobsColour = "yellow"

	cfg.Jobs.Notify = true
	cfg.Jobs.WaitOnExit = true

	cfg.Log.Level = "warn"

	return cfg
}
