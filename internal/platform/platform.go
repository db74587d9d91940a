// Package platform abstracts process-group creation, graceful
// termination and liveness probing across operating systems.
package platform

import "os/exec"

// Adapter is the OS-specific side of process supervision.
type Adapter interface {
	// PreExec configures cmd so the child starts in its own process
	// group before it is spawned.
	PreExec(cmd *exec.Cmd)
	// Terminate asks the process to shut down cooperatively.
	Terminate(pid int) error
	// Kill forcibly ends the process.
	Kill(pid int) error
	// IsAlive reports whether the OS considers the PID live.
	IsAlive(pid int) bool
}
