package supervisor

import (
	"os"
	"os/signal"
)

// Listener delivers termination requests addressed to tracebuild.
type Listener interface {
	// Listen starts delivery. stop releases the registration.
	Listen() (requests <-chan os.Signal, stop func(), err error)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func() (<-chan os.Signal, func(), error)

// Listen implements Listener.
func (f ListenerFunc) Listen() (<-chan os.Signal, func(), error) { return f() }

// SignalListener listens for OS signals.
type SignalListener struct {
	Signals []os.Signal
}

// NewSignalListener listens for the platform's termination signal.
func NewSignalListener() *SignalListener {
	return &SignalListener{Signals: terminationSignals}
}

// Listen implements Listener.
func (l *SignalListener) Listen() (<-chan os.Signal, func(), error) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, l.Signals...)
	return ch, func() { signal.Stop(ch) }, nil
}
