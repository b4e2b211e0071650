// Package supervisor runs the command only while the schedule is active.
//
// The loop polls once per tick. It owns the single child process and is the
// only party allowed to signal or reap it:
//
//	Idle     + active                        -> spawn            -> Running
//	Running  + exited, not asked to stop     -> exit with child's code
//	Running  + exited, asked to stop         -> Idle
//	Running  + alive, inactive, not asked    -> SIGTERM once     -> Stopping
//	Stopping + alive                         -> keep polling (optional kill after KillAfter)
//
// A child that finishes on its own inside a window ends the wrapper with the
// same status. A child stopped because its window closed returns the loop to
// Idle until the next window.
package supervisor
