package executor

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesStdout(t *testing.T) {
	exec := NewExecutor(io.Discard)

	cmd := &Cmd{Binary: "sh"}
	cmd.Add("-c", "printf hello")

	var out bytes.Buffer

	require.NoError(t, exec.Run(context.Background(), cmd, &out))
	assert.Equal(t, "hello", out.String())
}

func TestRunReportsFailure(t *testing.T) {
	exec := NewExecutor(io.Discard)

	cmd := &Cmd{Binary: "sh"}
	cmd.Add("-c", "exit 3")

	err := exec.Run(context.Background(), cmd, io.Discard)

	require.Error(t, err)
}

func TestCommandIncludesBinary(t *testing.T) {
	cmd := &Cmd{Binary: "ffprobe"}
	cmd.Add("-i", "input.mp4")
	cmd.Add("-print_format", "json")

	assert.Equal(t, []string{"ffprobe", "-i", "input.mp4", "-print_format", "json"}, cmd.Command())
}
