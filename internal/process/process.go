// Package process spawns and controls the supervised child.
//
// The caller owns the returned Process exclusively. A single internal
// goroutine reaps the child; everything else (Poll, Terminate, Kill) is
// non-blocking so the supervisor can keep watching the schedule while the
// child shuts down.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

var (
	ErrSpawn  = errors.New("spawn failed")
	ErrSignal = errors.New("signal delivery failed")
	ErrWait   = errors.New("wait failed")
)

// Command describes the child. Path and Args are passed as-is, no shell
// expansion. Nil streams are inherited from the wrapper.
type Command struct {
	Path string
	Args []string
	Env  []string // nil inherits the wrapper environment
	Dir  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Argv returns Path followed by Args.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// Status is how a child ended.
type Status struct {
	// ExitCode is 0 when the OS reports none (e.g. terminated by a signal).
	ExitCode int
	Signaled bool
	Signal   string
}

type Spawner interface {
	Spawn(cmd Command) (Process, error)
}

type Process interface {
	Pid() int
	// Poll reports the exit status without blocking. exited is false while
	// the child is still running.
	Poll() (status Status, exited bool, err error)
	// Terminate asks the child to stop (SIGTERM on unix).
	Terminate() error
	// Kill stops the child unconditionally.
	Kill() error
	// Done is closed once the child has been reaped.
	Done() <-chan struct{}
}

// ExecSpawner starts children with os/exec.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(c Command) (Process, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("%w: empty command", ErrSpawn)
	}
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	cmd.Stdin = orFile(c.Stdin, os.Stdin)
	cmd.Stdout = orWriter(c.Stdout, os.Stdout)
	cmd.Stderr = orWriter(c.Stderr, os.Stderr)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, c.Path, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

func orFile(r io.Reader, def *os.File) io.Reader {
	if r == nil {
		return def
	}
	return r
}

func orWriter(w io.Writer, def *os.File) io.Writer {
	if w == nil {
		return def
	}
	return w
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu    sync.Mutex
	state *os.ProcessState
	err   error
}

func (p *execProcess) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.state = p.cmd.ProcessState
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.err = err
	}
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Poll() (Status, bool, error) {
	select {
	case <-p.done:
	default:
		return Status{}, false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Status{}, true, fmt.Errorf("%w: pid %d: %w", ErrWait, p.Pid(), p.err)
	}
	if p.state == nil {
		return Status{}, true, fmt.Errorf("%w: pid %d: no process state", ErrWait, p.Pid())
	}
	return statusOf(p.state), true, nil
}

func statusOf(ps *os.ProcessState) Status {
	st := Status{ExitCode: ps.ExitCode()}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		st.Signaled = true
		st.Signal = ws.Signal().String()
	}
	if st.ExitCode < 0 {
		st.ExitCode = 0
	}
	return st
}

func (p *execProcess) Terminate() error {
	return p.signal(terminateSignal)
}

func (p *execProcess) Kill() error {
	return p.signal(os.Kill)
}

func (p *execProcess) signal(sig os.Signal) error {
	err := p.cmd.Process.Signal(sig)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		// Already reaped: the exit shows up on the next Poll.
		return nil
	}
	return fmt.Errorf("%w: %s to pid %d: %w", ErrSignal, sig, p.Pid(), err)
}
