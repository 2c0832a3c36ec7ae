package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// RunOptions carries per-invocation executor settings.
type RunOptions struct {
	// PathPrepend, when set, is prefixed to PATH for the child process.
	PathPrepend string
	// OnLine receives each output line from stdout and stderr.
	OnLine func(string)
	// OnStart receives the child pid once the process is running.
	OnStart func(pid int)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, opts RunOptions) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, opts RunOptions) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	// Own process group, so cancellation can signal the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = childEnv(opts.PathPrepend)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	if opts.OnStart != nil {
		opts.OnStart(cmd.Process.Pid)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once
	var lineMu sync.Mutex

	// Stdout and stderr are scanned concurrently but lines are delivered
	// serially so callbacks need no locking of their own.
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if opts.OnLine != nil {
				lineMu.Lock()
				opts.OnLine(scanner.Text())
				lineMu.Unlock()
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

func childEnv(pathPrepend string) []string {
	env := os.Environ()
	if pathPrepend == "" {
		return env
	}
	for i, entry := range env {
		if strings.HasPrefix(entry, "PATH=") {
			env[i] = "PATH=" + pathPrepend + string(os.PathListSeparator) + strings.TrimPrefix(entry, "PATH=")
			return env
		}
	}
	return append(env, "PATH="+pathPrepend)
}

// ExitCode extracts the subprocess exit code from a Run error.
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

// TerminateProcessGroup sends SIGTERM to the process group led by pid. There
// is no forced-kill escalation; the extractor handles SIGTERM cleanly.
func TerminateProcessGroup(pid int) error {
	if pid <= 0 {
		return errors.New("invalid pid")
	}
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("signal process group %d: %w", pid, err)
	}
	return nil
}
