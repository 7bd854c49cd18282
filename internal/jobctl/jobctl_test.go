package jobctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilTerminalIsDisabled(t *testing.T) {

	tty := New(nil, nil)

	assert.False(t, tty.Enabled())
	assert.Equal(t, -1, tty.FD())
	assert.NoError(t, tty.Foreground(12345))
	assert.NoError(t, tty.Restore())

}

func TestRegularFileIsNotATerminal(t *testing.T) {

	file, err := os.Create(filepath.Join(t.TempDir(), "tty"))
	require.NoError(t, err)
	defer file.Close()

	tty := New(file, nil)

	assert.False(t, tty.Enabled())
	assert.Equal(t, -1, tty.FD())
	assert.Equal(t, 0, tty.ShellPGID())
	assert.NoError(t, tty.Foreground(os.Getpid()))

}

func TestAttachDisabledOffTerminal(t *testing.T) {

	tty := Attach(nil, nil)

	assert.False(t, tty.Enabled())
	assert.Equal(t, -1, tty.FD())

}
