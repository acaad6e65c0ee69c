package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Kind classifies a fetch failure
type Kind string

const (
	KindInvalidURL Kind = "invalid_url"   // URL is malformed or not http(s)
	KindTimeout    Kind = "timeout"       // request exceeded the configured timeout
	KindHTTPStatus Kind = "http_status"   // server answered with a non-2xx status
	KindNetwork    Kind = "network_error" // any other transport failure
)

var (
	// ErrInvalidURL is matched by errors.Is for KindInvalidURL failures
	ErrInvalidURL = errors.New("invalid URL")
	// ErrTimeout is matched by errors.Is for KindTimeout failures
	ErrTimeout = errors.New("request timed out")
	// ErrHTTPStatus is matched by errors.Is for KindHTTPStatus failures
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	// ErrNetwork is matched by errors.Is for KindNetwork failures
	ErrNetwork = errors.New("network error")
)

// Error describes a failed fetch
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int   // set for KindHTTPStatus
	Err        error // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
		}
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindInvalidURL:
		return target == ErrInvalidURL
	case KindTimeout:
		return target == ErrTimeout
	case KindHTTPStatus:
		return target == ErrHTTPStatus
	case KindNetwork:
		return target == ErrNetwork
	}
	return false
}

// Cause returns the Go type name of the underlying error, for diagnostics
func (e *Error) Cause() string {
	if e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%T", e.Err)
}

// KindOf returns the failure kind of err, or "" when err is not a fetch error
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// classify maps a transport error returned by http.Client to a fetch error
func classify(url string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}

	return &Error{Kind: KindNetwork, URL: url, Err: err}
}
