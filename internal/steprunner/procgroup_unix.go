//go:build unix

package steprunner

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the shell in its own process group so cancellation
// kills the shell and all its children.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
