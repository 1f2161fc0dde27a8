package build

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// ErrMalformedStatus is returned for anything other than "success" or "failure".
var ErrMalformedStatus = errors.New("malformed status")

// Status is the outcome of a build or step.
type Status int

const (
	// StatusUnset means no status was reported.
	StatusUnset Status = iota
	StatusSuccess
	StatusFailure
)

// ParseStatus parses "success" or "failure".
func ParseStatus(s string) (Status, error) {
	switch s {
	case "success":
		return StatusSuccess, nil
	case "failure":
		return StatusFailure, nil
	default:
		return StatusUnset, fmt.Errorf("%w: %q; valid are: success, failure", ErrMalformedStatus, s)
	}
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return ""
	}
}

// Code maps the status onto a span status code.
func (s Status) Code() codes.Code {
	switch s {
	case StatusSuccess:
		return codes.Ok
	case StatusFailure:
		return codes.Error
	default:
		return codes.Unset
	}
}

// Set implements pflag.Value.
func (s *Status) Set(text string) error {
	parsed, err := ParseStatus(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Type implements pflag.Value.
func (s *Status) Type() string { return "status" }
