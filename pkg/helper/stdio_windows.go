//go:build windows

package helper

import (
	"os"

	"golang.org/x/sys/windows"
)

// markStdoutNonInheritable clears the inherit flag on the stdout handle so
// child processes (the spawned browser in particular) do not inherit the
// protocol stream.
func markStdoutNonInheritable() error {
	return windows.SetHandleInformation(windows.Handle(os.Stdout.Fd()), windows.HANDLE_FLAG_INHERIT, 0)
}
