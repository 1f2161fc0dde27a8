//go:build unix

package supervisor

import (
	"os"

	"golang.org/x/sys/unix"
)

var terminationSignals = []os.Signal{unix.SIGTERM}

type signalTerminator struct{}

// NewTerminator returns the platform terminator: SIGTERM on unix.
func NewTerminator() Terminator { return signalTerminator{} }

func (signalTerminator) RequestGracefulTermination(p *os.Process) (bool, error) {
	return true, p.Signal(unix.SIGTERM)
}
