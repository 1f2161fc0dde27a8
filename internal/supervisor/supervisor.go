package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tracebuild/internal/logging"
)

// Terminator asks a running child to stop.
type Terminator interface {
	// RequestGracefulTermination reports whether graceful termination is
	// supported. err is only meaningful when supported is true.
	RequestGracefulTermination(p *os.Process) (supported bool, err error)
}

// TerminatorFunc adapts a function to Terminator.
type TerminatorFunc func(p *os.Process) (bool, error)

// RequestGracefulTermination implements Terminator.
func (f TerminatorFunc) RequestGracefulTermination(p *os.Process) (bool, error) { return f(p) }

// Result is the child's final status.
type Result struct {
	// Code is the child's exit code. Only meaningful when Exited is true.
	Code int
	// Exited is false when the child was terminated by a signal and the
	// platform reported no exit code.
	Exited bool
}

// Supervisor spawns and waits on child commands.
type Supervisor struct {
	listener   Listener
	terminator Terminator
	logger     *logging.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithListener overrides the termination listener (for testing).
func WithListener(l Listener) Option {
	return func(s *Supervisor) { s.listener = l }
}

// WithTerminator overrides the platform terminator (for testing).
func WithTerminator(t Terminator) Option {
	return func(s *Supervisor) { s.terminator = t }
}

// WithLogger sets the logger used for non-fatal supervision problems.
func WithLogger(l *logging.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// New creates a Supervisor using the platform listener and terminator.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		listener:   NewSignalListener(),
		terminator: NewTerminator(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpawnOption configures the child process.
type SpawnOption func(*exec.Cmd)

// WithStdout redirects the child's stdout.
func WithStdout(w io.Writer) SpawnOption {
	return func(c *exec.Cmd) { c.Stdout = w }
}

// WithStderr redirects the child's stderr.
func WithStderr(w io.Writer) SpawnOption {
	return func(c *exec.Cmd) { c.Stderr = w }
}

// Handle is a running child.
type Handle struct {
	cmd  *exec.Cmd
	done chan error
}

// Pid returns the child's process id.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// Spawn starts name with args. The child inherits tracebuild's stdio unless
// overridden. Failure to start is returned as a *SpawnError.
func (s *Supervisor) Spawn(name string, args []string, opts ...SpawnOption) (*Handle, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	for _, opt := range opts {
		opt(cmd)
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: name, Err: err}
	}

	h := &Handle{cmd: cmd, done: make(chan error, 1)}
	go func() {
		h.done <- cmd.Wait()
	}()
	return h, nil
}

// Wait blocks until the child exits, forwarding a termination request to
// it if one arrives first. Cancelling ctx counts as a termination request.
func (s *Supervisor) Wait(ctx context.Context, h *Handle) (Result, error) {
	requests, stop, err := s.listener.Listen()
	if err != nil {
		// Nobody would forward termination to this child; do not leave it
		// running unsupervised.
		if killErr := h.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			s.logger.Warn(ctx, "failed to kill unsupervised child", zap.Int("pid", h.Pid()), zap.Error(killErr))
		}
		<-h.done
		return Result{}, &SignalSetupError{Err: err}
	}
	defer stop()

	select {
	case waitErr := <-h.done:
		return h.result(waitErr)
	case sig := <-requests:
		s.logger.Info(ctx, "termination requested", zap.Stringer("signal", sig), zap.Int("pid", h.Pid()))
	case <-ctx.Done():
		s.logger.Info(ctx, "termination requested", zap.Error(ctx.Err()), zap.Int("pid", h.Pid()))
	}

	// Completion takes precedence when both are ready.
	select {
	case waitErr := <-h.done:
		return h.result(waitErr)
	default:
	}

	supported, err := s.terminator.RequestGracefulTermination(h.cmd.Process)
	if !supported {
		if killErr := h.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			s.logger.Warn(ctx, "failed to kill child process", zap.Int("pid", h.Pid()), zap.Error(killErr))
		}
		<-h.done
		return Result{}, ErrKilled
	}
	if err != nil {
		// Usually the child exited between the two selects.
		s.logger.Warn(ctx, "failed to forward termination to child process", zap.Int("pid", h.Pid()), zap.Error(err))
	}

	return h.result(<-h.done)
}

// Run spawns name and waits for it.
func (s *Supervisor) Run(ctx context.Context, name string, args []string, opts ...SpawnOption) (Result, error) {
	h, err := s.Spawn(name, args, opts...)
	if err != nil {
		return Result{}, err
	}
	return s.Wait(ctx, h)
}

func (h *Handle) result(waitErr error) (Result, error) {
	if waitErr == nil {
		return Result{Code: 0, Exited: true}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			return Result{Code: code, Exited: false}, nil
		}
		return Result{Code: code, Exited: true}, nil
	}

	return Result{}, &ChildIOError{Err: waitErr}
}
