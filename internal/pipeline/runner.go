package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/tjfontaine/deployhook/internal/domain"
)

// ScriptRunner executes a deployment script and waits for it to exit.
type ScriptRunner interface {
	Run(ctx context.Context, script string) (domain.ExecResult, error)
}

const (
	defaultShell          = "sh"
	defaultMaxOutputBytes = 64 * 1024
	defaultWaitDelay      = 5 * time.Second
)

// ShellRunner runs scripts as `<Shell> <script>` with the process environment.
// Cancelling the context kills the shell.
type ShellRunner struct {
	// Shell defaults to "sh".
	Shell string

	// MaxOutputBytes caps how much of stdout and stderr is retained, per stream.
	MaxOutputBytes int

	// WaitDelay bounds how long to wait for output pipes after the shell exits
	// or is killed, in case the script left background children holding them.
	WaitDelay time.Duration
}

// NewShellRunner creates a runner for the given shell.
func NewShellRunner(shell string, maxOutputBytes int) *ShellRunner {
	return &ShellRunner{
		Shell:          shell,
		MaxOutputBytes: maxOutputBytes,
		WaitDelay:      defaultWaitDelay,
	}
}

// Run executes script and returns its exit code and captured output. A non-nil
// error means the script failed to start, exited non-zero or was killed.
func (r *ShellRunner) Run(ctx context.Context, script string) (domain.ExecResult, error) {
	shell := r.Shell
	if shell == "" {
		shell = defaultShell
	}
	limit := r.MaxOutputBytes
	if limit <= 0 {
		limit = defaultMaxOutputBytes
	}

	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}

	cmd := exec.CommandContext(ctx, shell, script)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.WaitDelay

	err := cmd.Run()

	result := domain.ExecResult{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s %s: %w (%v)", shell, script, ctxErr, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, fmt.Errorf("%s %s: exited with code %d: %w", shell, script, result.ExitCode, err)
		}
		return result, fmt.Errorf("%s %s: %w", shell, script, err)
	}

	return result, nil
}

// cappedBuffer keeps the first limit bytes written and silently drops the rest
// so a chatty script never fails on a short write.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
			b.truncated = true
		} else {
			b.buf = append(b.buf, p...)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return string(b.buf) + "\n[output truncated]"
	}
	return string(b.buf)
}
