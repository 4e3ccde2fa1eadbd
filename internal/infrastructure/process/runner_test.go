package process

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Capture(t *testing.T) {
	r := NewRunner()

	out, err := r.Capture(context.Background(), Spec{
		Program: "sh",
		Args:    []string{"-c", "echo chain-spec"},
	})
	require.NoError(t, err)
	assert.Equal(t, "chain-spec\n", string(out))

	_, err = r.Capture(context.Background(), Spec{
		Program: "sh",
		Args:    []string{"-c", "exit 3"},
	})
	require.Error(t, err)
}

func TestRunner_BeginAndHalt(t *testing.T) {
	r := NewRunner()
	logFile := filepath.Join(t.TempDir(), "node.log")

	p, err := r.Begin(context.Background(), Spec{
		Program: "sh",
		Args:    []string{"-c", "echo up; sleep 30"},
		LogFile: logFile,
	})
	require.NoError(t, err)
	require.Greater(t, p.PID(), 0)
	assert.True(t, p.Alive())

	require.NoError(t, p.Halt(context.Background(), 2*time.Second))
	assert.False(t, p.Alive())

	select {
	case <-p.Exited():
	default:
		t.Fatal("exited channel not closed after halt")
	}
}

func TestRunner_BeginUnknownProgram(t *testing.T) {
	r := NewRunner()

	_, err := r.Begin(context.Background(), Spec{Program: "no-such-binary-zn"})
	require.Error(t, err)
}

func TestProc_Tail(t *testing.T) {
	r := NewRunner()
	logFile := filepath.Join(t.TempDir(), "out.log")

	p, err := r.Begin(context.Background(), Spec{
		Program: "sh",
		Args:    []string{"-c", "for i in 1 2 3 4 5; do echo line-$i; done"},
		LogFile: logFile,
	})
	require.NoError(t, err)
	require.NoError(t, p.Wait())

	lines, err := p.Tail(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"line-4", "line-5"}, lines)

	all, err := p.Tail(50)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
