package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindStatus        ErrorKind = "status"
	KindConnection    ErrorKind = "connection"
	KindRobotsBlocked ErrorKind = "robots_blocked"
	KindInvalidURL    ErrorKind = "invalid_url"
	KindBody          ErrorKind = "body"
	KindCancelled     ErrorKind = "cancelled"
)

// ErrTooManyRedirects is returned when the redirect hop limit is exceeded.
var ErrTooManyRedirects = errors.New("too many redirects")

// FetchError is returned for every failed fetch. Callers treat the page as empty.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus && e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary reports whether another attempt could succeed. Only timeouts and
// connection failures qualify; a status response is final.
func (e *FetchError) Temporary() bool {
	return e.Kind == KindTimeout || e.Kind == KindConnection
}

// classify maps a transport error to a FetchError.
func classify(rawURL string, err error) *FetchError {
	kind := KindConnection

	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.Is(err, ErrTooManyRedirects):
		kind = KindStatus
	}

	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}
