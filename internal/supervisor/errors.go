package supervisor

import (
	"errors"
	"fmt"
	"syscall"
)

// ExitOSErr is reported when the child could not even be attempted.
// From sysexits(3).
const ExitOSErr = 71

// ErrKilled is returned when termination could not be forwarded gracefully
// and the child was force-killed. No exit code can be trusted in that case.
var ErrKilled = errors.New("child process was killed")

// SpawnError reports that the child executable could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start child program %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// SignalSetupError reports that the termination listener could not be
// registered.
type SignalSetupError struct {
	Err error
}

func (e *SignalSetupError) Error() string {
	return fmt.Sprintf("failed to register termination handler: %v", e.Err)
}

func (e *SignalSetupError) Unwrap() error { return e.Err }

// ChildIOError reports that waiting on the child failed at the OS level.
type ChildIOError struct {
	Err error
}

func (e *ChildIOError) Error() string {
	return fmt.Sprintf("child program failed: %v", e.Err)
}

func (e *ChildIOError) Unwrap() error { return e.Err }

// ExitCode translates the outcome of Run or Wait into the exit code
// tracebuild reports:
//   - spawn and listener setup failures: ExitOSErr
//   - wait failures: the OS error number when there is one, else 1
//   - ErrKilled: 1
//   - a clean exit: the child's code, or 1 when the child died from a signal
func ExitCode(res Result, err error) int {
	if err == nil {
		if res.Exited {
			return res.Code
		}
		return 1
	}

	var (
		spawnErr *SpawnError
		setupErr *SignalSetupError
		ioErr    *ChildIOError
	)
	switch {
	case errors.As(err, &spawnErr), errors.As(err, &setupErr):
		return ExitOSErr
	case errors.As(err, &ioErr):
		var errno syscall.Errno
		if errors.As(ioErr.Err, &errno) && errno != 0 {
			return int(errno)
		}
		return 1
	default:
		return 1
	}
}
