// Package execx runs external tool processes for the capability
// wrappers. It exists so the detection and encoding packages share one
// runner abstraction and one fake seam in tests.
package execx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// Result is one process execution response.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// StreamRunner additionally forwards stdout to a writer while the
// process runs, for tools that report progress incrementally.
type StreamRunner interface {
	Runner
	RunStream(ctx context.Context, stdout io.Writer, name string, args ...string) (Result, error)
}

// OSRunner executes commands via os/exec.
type OSRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout bytes.Buffer
	return r.run(ctx, &stdout, name, args...)
}

// RunStream executes one command, copying stdout to w as it is
// produced. Result.Stdout is empty in this mode.
func (r *OSRunner) RunStream(ctx context.Context, w io.Writer, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = &stderr

	err := cmd.Run()
	return finish(Result{Stderr: stderr.String()}, err)
}

// run executes one command buffering stdout.
func (r *OSRunner) run(ctx context.Context, stdout *bytes.Buffer, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return finish(Result{Stdout: stdout.String(), Stderr: stderr.String()}, err)
}

// finish fills in the exit code from a Run error.
func finish(result Result, err error) (Result, error) {
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}
