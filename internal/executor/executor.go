package executor

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Executor runs external binaries (ffmpeg, ffprobe) capturing their output
// streams for the caller.
type Executor struct {
	logger io.Writer
}

func NewExecutor(logger io.Writer) *Executor {
	e := &Executor{logger: logger}
	return e
}

// Run executes the command, stdout to out and stderr to the executor log.
func (e *Executor) Run(ctx context.Context, command *Cmd, out io.Writer) error {
	log.Debugf("> %s %s", command.Binary, strings.Join(command.args, " "))

	start := time.Now()

	cmd := exec.CommandContext(ctx, command.Binary, command.args...)
	cmd.Stdout = out
	cmd.Stderr = e.logger
	err := cmd.Run()

	log.Debugf("%s finished in %s", command.Binary, time.Since(start))

	return err
}

// RunPipe executes the command with stderr exposed to the caller as a
// stream, for progress parsing. The returned channel delivers the final
// process error after the stderr pipe drains.
func (e *Executor) RunPipe(ctx context.Context, command *Cmd, out io.Writer) (io.ReadCloser, <-chan error, error) {
	log.Debugf("> %s %s", command.Binary, strings.Join(command.args, " "))

	cmd := exec.CommandContext(ctx, command.Binary, command.args...)
	cmd.Stdout = out

	errStream, err := cmd.StderrPipe()

	if err != nil {
		return nil, nil, err
	}

	if err = cmd.Start(); err != nil {
		return nil, nil, err
	}

	done := make(chan error, 1)

	go func() {
		done <- cmd.Wait()
		close(done)
	}()

	return errStream, done, nil
}

type Cmd struct {
	Binary string
	args   []string
}

func (c *Cmd) Add(args ...string) {
	c.args = append(c.args, args...)
}

// Command returns the full invocation, binary included, for error
// messages.
func (c *Cmd) Command() []string {
	return append([]string{c.Binary}, c.args...)
}
