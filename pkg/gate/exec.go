package gate

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// ProcessRunner spawns one foreground process attached to the operator's
// terminal and reports its exit code. A non-zero exit is a result, not an
// error; the error path is reserved for failing to launch at all.
type ProcessRunner interface {
	Run(argv []string) (int, error)
}

// ExecRunner runs the process with inherited stdio. While the child runs,
// terminal signals are ignored in this process: an interrupt must reach the
// ssh client and end the session, while this process stays alive to unwind
// key material and the trust grant.
type ExecRunner struct{}

func (ExecRunner) Run(argv []string) (int, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return 0, &ProcessLaunchError{Path: argv[0], Err: err}
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	ignored := make(chan os.Signal, 1)
	signal.Notify(ignored, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(ignored)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-ignored:
			case <-done:
				return
			}
		}
	}()

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, &ProcessLaunchError{Path: path, Err: err}
}
