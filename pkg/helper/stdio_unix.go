//go:build !windows

package helper

import (
	"os"

	"golang.org/x/sys/unix"
)

// markStdoutNonInheritable sets FD_CLOEXEC on stdout so child processes
// (the spawned browser in particular) do not inherit the protocol stream.
func markStdoutNonInheritable() error {
	_, err := unix.FcntlInt(os.Stdout.Fd(), unix.F_SETFD, unix.FD_CLOEXEC)
	return err
}
