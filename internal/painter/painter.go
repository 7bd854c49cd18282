// Package painter renders the coloured parts of the shell prompt. Colours
// come from the prompt configuration, optionally overridden by a named
// theme, and are applied with fatih/color so they disappear when colour
// output is disabled.
package painter

import (
	"strings"

	"github.com/fatih/color"

	"Jobsh/internal/config"
)

// Painter holds the styles for the parts of the prompt.
type Painter struct {
	Path   *color.Color // current directory
	Status *color.Color // non-zero status of the last job
	Jobs   *color.Color // number of background jobs
}

// NewPainter creates a new Painter based on the provided config.Prompt.
// If a theme is set in the config, it overrides the colours.
func NewPainter(cfg config.Prompt) Painter {
	resolveTheme(&cfg)
	return Painter{
		Path:   style(cfg.PathColour, cfg.PathColourBold),
		Status: style(cfg.StatusColour, cfg.StatusColourBold),
		Jobs:   style(cfg.JobsColour, false),
	}
}

// resolveTheme applies a predefined theme to the provided Prompt config.
func resolveTheme(cfg *config.Prompt) {

	switch strings.ToLower(strings.TrimSpace(cfg.Theme)) {
	case "jobsh":
		cfg.PathColour = "yellow"
		cfg.PathColourBold = false
		cfg.StatusColour = "red"
		cfg.StatusColourBold = true
		cfg.JobsColour = "cyan"
	case "monokai":
		cfg.PathColour = "magenta"
		cfg.PathColourBold = true
		cfg.StatusColour = "bright red"
		cfg.StatusColourBold = false
		cfg.JobsColour = "green"
	case "plain":
		cfg.PathColour = "default"
		cfg.PathColourBold = false
		cfg.StatusColour = "default"
		cfg.StatusColourBold = false
		cfg.JobsColour = "default"
	}

}

var colours = map[string]color.Attribute{
	"black":         color.FgBlack,
	"red":           color.FgRed,
	"green":         color.FgGreen,
	"yellow":        color.FgYellow,
	"blue":          color.FgBlue,
	"magenta":       color.FgMagenta,
	"cyan":          color.FgCyan,
	"white":         color.FgWhite,
	"bright red":    color.FgHiRed,
	"bright yellow": color.FgHiYellow,
	"bright blue":   color.FgHiBlue,
}

// style converts a colour name into a color.Color. Unknown names and
// "default" leave the terminal colour unchanged.
func style(colour string, bold bool) *color.Color {

	c := color.New()

	if attr, ok := colours[strings.ToLower(strings.TrimSpace(colour))]; ok {
		c.Add(attr)
	}
	if bold {
		c.Add(color.Bold)
	}

	return c

}

// Paint applies c to text.
func Paint(c *color.Color, text string) string {
	if c == nil {
		return text
	}
	return c.Sprint(text)
}
