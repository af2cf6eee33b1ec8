package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner abstracts external command execution so that converters and
// transcribers can be tested without the real binaries installed.
type Runner interface {
	// Run executes name with args, returning combined stdout once the
	// command exits.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string,
	args ...string) ([]byte, error) {

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err,
			stderr.String())
	}

	return stdout.Bytes(), nil
}
