package fetcher

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultMaxIdleConns          = 100
	defaultMaxIdleConnsPerHost   = 10
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultDialTimeout           = 10 * time.Second
)

// NewHTTPClient builds the shared client used for pages, robots.txt and
// downloads. Per-request deadlines come from contexts, so the client itself
// has no overall timeout.
func NewHTTPClient(maxRedirects int) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: RedirectPolicy(maxRedirects),
	}
}

// RedirectPolicy returns a CheckRedirect function that stops after maxHops
// redirects with ErrTooManyRedirects. maxHops <= 0 keeps the net/http default.
func RedirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if maxHops > 0 && len(via) >= maxHops {
			return ErrTooManyRedirects
		}
		if len(via) >= 10 {
			return ErrTooManyRedirects
		}
		return nil
	}
}
