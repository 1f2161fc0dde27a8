package build

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/trace"
)

// Build values are parsed straight from command line flags.
var (
	_ pflag.Value = (*ID)(nil)
	_ pflag.Value = (*StepID)(nil)
	_ pflag.Value = (*Timestamp)(nil)
	_ pflag.Value = (*Status)(nil)
)

const (
	traceHexLen = 32
	spanHexLen  = 16

	// IDLen is the length of the textual form of an ID.
	IDLen = traceHexLen + spanHexLen
)

// ErrMalformedID is returned when a build or step id cannot be parsed.
var ErrMalformedID = errors.New("malformed id")

// ID identifies a build: the trace every span of the build belongs to and
// the span that represents the build itself.
type ID struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

// NewID assembles an ID from its halves.
func NewID(traceID trace.TraceID, spanID trace.SpanID) ID {
	return ID{traceID: traceID, spanID: spanID}
}

// GenerateID returns a fresh random ID. Both halves are non-zero so the
// result is always a valid OpenTelemetry trace and span id.
func GenerateID() ID {
	var (
		traceID trace.TraceID
		spanID  trace.SpanID
	)
	for !traceID.IsValid() {
		fill(traceID[:])
	}
	for !spanID.IsValid() {
		fill(spanID[:])
	}
	return NewID(traceID, spanID)
}

func fill(b []byte) {
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
}

// ParseID parses the 48 character hex form produced by String.
func ParseID(s string) (ID, error) {
	if len(s) != IDLen {
		return ID{}, fmt.Errorf("%w: length is %d, want %d", ErrMalformedID, len(s), IDLen)
	}

	var (
		traceID trace.TraceID
		spanID  trace.SpanID
	)
	if _, err := hex.Decode(traceID[:], []byte(s[:traceHexLen])); err != nil {
		return ID{}, fmt.Errorf("%w: trace half: %v", ErrMalformedID, err)
	}
	if _, err := hex.Decode(spanID[:], []byte(s[traceHexLen:])); err != nil {
		return ID{}, fmt.Errorf("%w: span half: %v", ErrMalformedID, err)
	}
	return NewID(traceID, spanID), nil
}

// TraceID returns the trace half.
func (id ID) TraceID() trace.TraceID { return id.traceID }

// SpanID returns the span half.
func (id ID) SpanID() trace.SpanID { return id.spanID }

// String returns the zero-padded lowercase hex form.
func (id ID) String() string {
	return hex.EncodeToString(id.traceID[:]) + hex.EncodeToString(id.spanID[:])
}

// Set implements pflag.Value.
func (id *ID) Set(s string) error {
	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Type implements pflag.Value.
func (id *ID) Type() string { return "id" }

// StepID identifies a step span. It shares the ID text layout; only the span
// half is used, the trace half is ignored.
type StepID struct {
	id ID
}

// GenerateStepID returns a fresh random step id.
func GenerateStepID() StepID {
	return StepID{id: GenerateID()}
}

// ParseStepID parses the 48 character hex form.
func ParseStepID(s string) (StepID, error) {
	id, err := ParseID(s)
	if err != nil {
		return StepID{}, err
	}
	return StepID{id: id}, nil
}

// SpanID returns the span the step id denotes.
func (s StepID) SpanID() trace.SpanID { return s.id.spanID }

// String returns the 48 character hex form, trace half included.
func (s StepID) String() string { return s.id.String() }

// Set implements pflag.Value.
func (s *StepID) Set(text string) error {
	parsed, err := ParseStepID(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Type implements pflag.Value.
func (s *StepID) Type() string { return "id" }
