//go:build unix

package mdbook

import (
	"os"
	"syscall"
)

// interrupt sends SIGINT; WaitDelay escalates to a kill.
func interrupt(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}
