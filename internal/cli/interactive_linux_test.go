//go:build linux

package cli

import (
	"bytes"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PromptOnTerminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pseudo-terminal available: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	assert.True(t, isTerminal(tty))
	assert.False(t, isTerminal(&bytes.Buffer{}))

	_, err = ptmx.Write([]byte("1 + 2\n.q\n"))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetIn(tty)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "txrepl> (int) 3\ntxrepl> \n", out.String())
}
