package painter

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"Jobsh/internal/config"
)

func TestThemeOverridesColours(t *testing.T) {

	cfg := config.Prompt{Theme: "plain", PathColour: "red", PathColourBold: true}
	resolveTheme(&cfg)

	assert.Equal(t, "default", cfg.PathColour)
	assert.False(t, cfg.PathColourBold)
	assert.Equal(t, "default", cfg.JobsColour)

}

func TestUnknownThemeKeepsColours(t *testing.T) {

	cfg := config.Prompt{Theme: "default", PathColour: "blue"}
	resolveTheme(&cfg)

	assert.Equal(t, "blue", cfg.PathColour)

}

func TestPaint(t *testing.T) {

	saved := color.NoColor
	defer func() { color.NoColor = saved }()

	p := NewPainter(config.Prompt{PathColour: "green", StatusColour: "red", StatusColourBold: true})

	color.NoColor = true
	assert.Equal(t, "~/src", Paint(p.Path, "~/src"))

	color.NoColor = false
	assert.Equal(t, "\x1b[32m~/src\x1b[0m", Paint(p.Path, "~/src"))
	assert.Equal(t, "\x1b[31;1m1\x1b[0m", Paint(p.Status, "1"))
	assert.Equal(t, "plain", Paint(nil, "plain"))

}
