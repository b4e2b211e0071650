//go:build !windows

package process

import "syscall"

// SIGTERM rather than SIGQUIT/SIGKILL so the child can reap its own
// subprocesses before exiting.
var terminateSignal = syscall.SIGTERM
