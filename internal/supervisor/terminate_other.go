//go:build !unix

package supervisor

import (
	"os"
)

var terminationSignals = []os.Signal{os.Interrupt}

type killTerminator struct{}

// NewTerminator returns the platform terminator. Without unix signals there
// is no way to deliver a graceful request to an arbitrary child.
func NewTerminator() Terminator { return killTerminator{} }

func (killTerminator) RequestGracefulTermination(*os.Process) (bool, error) {
	return false, nil
}
