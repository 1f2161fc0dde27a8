//go:build unix

package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_ForwardsRealSIGTERM(t *testing.T) {
	// Keep the test binary alive should a signal land before Wait listens.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGTERM)
	defer signal.Stop(guard)

	s := New()
	h := trappingChild(t, s)

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.Wait(context.Background(), h)
		done <- outcome{res, err}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(10 * time.Second)

	for {
		select {
		case got := <-done:
			require.NoError(t, got.err)
			assert.Equal(t, Result{Code: 7, Exited: true}, got.res)
			assert.Equal(t, 7, ExitCode(got.res, got.err))
			return
		case <-ticker.C:
			require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
		case <-deadline:
			_ = h.cmd.Process.Kill()
			t.Fatal("child was not terminated by forwarded SIGTERM")
		}
	}
}
