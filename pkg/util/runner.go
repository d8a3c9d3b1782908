package util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Runner starts external tools. The daemon uses ExecRunner; tests swap in
// fakes so nothing is actually executed.
type Runner interface {
	// LookPath reports whether name is installed.
	LookPath(name string) bool
	// Run executes name without a shell and returns its trimmed stdout.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// CommandError is returned by ExecRunner when a tool fails. Tail holds the
// last lines the tool printed.
type CommandError struct {
	Name string
	Err  error
	Tail string
}

func (e *CommandError) Error() string {
	if e.Tail == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Tail)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs tools with os/exec, streaming their output into the log.
type ExecRunner struct {
	Log *zerolog.Logger
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	clog := r.Log.With().Str("cmd", name).Logger()
	cl := &CommandLogger{Log: func(line string) { clog.Debug().Msg(line) }}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = io.MultiWriter(&stdout, cl)
	cmd.Stderr = cl

	clog.Debug().Strs("args", args).Msg("running")
	err := cmd.Run()
	cl.Close()

	out := strings.TrimSpace(stdout.String())
	if err != nil {
		return out, &CommandError{Name: name, Err: err, Tail: cl.Tail()}
	}

	return out, nil
}
