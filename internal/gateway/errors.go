package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrOverloaded marks a provider that is temporarily refusing work.
	ErrOverloaded = errors.New("model provider overloaded")
	// ErrTimeout marks a call that exceeded its deadline.
	ErrTimeout = errors.New("model call deadline exceeded")
	// ErrNoOutput is returned when the model reply carries no structured output.
	ErrNoOutput = errors.New("model returned no structured output")
	// ErrInvalidOutput is returned when the reply does not match the declared shape.
	ErrInvalidOutput = errors.New("model output does not match schema")
	// ErrInvalidInput is returned when the prompt input fails validation.
	ErrInvalidInput = errors.New("invalid prompt input")
)

// StatusError is a non-success HTTP status reported by a provider.
type StatusError struct {
	Provider string
	Code     int
	Message  string
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Failure is the user-relevant class of a model call error.
type Failure int

const (
	FailureOther Failure = iota
	FailureOverloaded
	FailureTimeout
)

func (f Failure) String() string {
	switch f {
	case FailureOverloaded:
		return "overloaded"
	case FailureTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Classify maps an error from Invoke or a Client to a Failure. Typed errors
// and status codes are checked first. Message text is consulted only when no
// status code is known.
func Classify(err error) Failure {
	if err == nil {
		return FailureOther
	}

	switch {
	case errors.Is(err, ErrOverloaded):
		return FailureOverloaded
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusServiceUnavailable, http.StatusTooManyRequests, 529:
			return FailureOverloaded
		case http.StatusGatewayTimeout:
			return FailureTimeout
		}
		if se.Code != 0 {
			return FailureOther
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "503"),
		strings.Contains(msg, "service unavailable"),
		strings.Contains(msg, "overloaded"):
		return FailureOverloaded
	case strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "timed out"):
		return FailureTimeout
	}
	return FailureOther
}
