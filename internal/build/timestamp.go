package build

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrMalformedTimestamp is returned when a start time cannot be parsed.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// secondsBeforeEpoch is the distance between year 1, where time.Time counts
// from, and the Unix epoch.
const secondsBeforeEpoch = 62135596800

// maxUnixSeconds is the largest value time.Unix round-trips through Unix().
const maxUnixSeconds = math.MaxInt64 - secondsBeforeEpoch

// Timestamp is a point in time with one second granularity.
type Timestamp struct {
	t time.Time
}

// Now captures the current time.
func Now() Timestamp {
	return Timestamp{t: time.Now()}
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t}
}

// ParseTimestamp parses a decimal count of seconds since the Unix epoch.
func ParseTimestamp(s string) (Timestamp, error) {
	secs, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q: %v", ErrMalformedTimestamp, s, err)
	}
	if secs > maxUnixSeconds {
		return Timestamp{}, fmt.Errorf("%w: %q: seconds out of range", ErrMalformedTimestamp, s)
	}
	return Timestamp{t: time.Unix(int64(secs), 0)}, nil
}

// Time returns the wrapped time.
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether ts was never set.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// String formats ts as whole seconds since the Unix epoch.
func (ts Timestamp) String() string {
	return strconv.FormatInt(ts.t.Unix(), 10)
}

// Set implements pflag.Value.
func (ts *Timestamp) Set(s string) error {
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// Type implements pflag.Value.
func (ts *Timestamp) Type() string { return "timestamp" }
