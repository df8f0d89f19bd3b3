//go:build !unix

package mdbook

import "os"

// interrupt kills the child; there is no portable interrupt signal here.
func interrupt(p *os.Process) error {
	return p.Kill()
}
