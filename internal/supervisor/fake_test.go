package supervisor

import (
	"errors"
	"sync"

	"during/internal/process"
)

type fakeProcess struct {
	pid  int
	done chan struct{}

	mu         sync.Mutex
	exited     bool
	status     process.Status
	pollErr    error
	termErr    error
	killErr    error
	terms      int
	kills      int
	exitOnTerm bool
	exitOnKill bool
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Poll() (process.Status, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pollErr != nil {
		return process.Status{}, true, p.pollErr
	}
	return p.status, p.exited, nil
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.termErr != nil {
		return p.termErr
	}
	p.terms++
	if p.exitOnTerm {
		p.exitLocked(process.Status{Signaled: true, Signal: "terminated"})
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killErr != nil {
		return p.killErr
	}
	p.kills++
	if p.exitOnKill {
		p.exitLocked(process.Status{Signaled: true, Signal: "killed"})
	}
	return nil
}

func (p *fakeProcess) exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitLocked(process.Status{ExitCode: code})
}

func (p *fakeProcess) exitLocked(st process.Status) {
	if p.exited {
		return
	}
	p.exited = true
	p.status = st
	close(p.done)
}

func (p *fakeProcess) counts() (terms, kills int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terms, p.kills
}

type fakeSpawner struct {
	mu       sync.Mutex
	err      error
	prepare  func(*fakeProcess)
	spawned  []*fakeProcess
	commands []process.Command
}

func (s *fakeSpawner) Spawn(c process.Command) (process.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p := newFakeProcess(1000 + len(s.spawned))
	if s.prepare != nil {
		s.prepare(p)
	}
	s.spawned = append(s.spawned, p)
	s.commands = append(s.commands, c)
	return p, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spawned)
}

func (s *fakeSpawner) last() *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spawned) == 0 {
		return nil
	}
	return s.spawned[len(s.spawned)-1]
}

// toggle is a window.Activity whose answer the test controls.
type toggle struct {
	mu     sync.Mutex
	active bool
}

func (t *toggle) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *toggle) set(v bool) {
	t.mu.Lock()
	t.active = v
	t.mu.Unlock()
}

var errBoom = errors.New("boom")
