// Package httpauth provides the HTTP plumbing shared by the WebDAV based
// clients: basic authentication, a user agent and optional rate limiting.
package httpauth

import (
	"net/http"

	"golang.org/x/time/rate"
)

const userAgent = "calnotes/1.0"

// Transport adds Basic Auth and custom headers to requests, and waits on the
// limiter, if any, before each round trip.
type Transport struct {
	Username  string
	Password  string
	Limiter   *rate.Limiter
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	if t.Username != "" || t.Password != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set("User-Agent", userAgent)

	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewClient returns an http.Client using Transport. requestsPerSecond <= 0
// disables rate limiting.
func NewClient(username, password string, requestsPerSecond float64) *http.Client {
	t := &Transport{Username: username, Password: password, Transport: http.DefaultTransport}
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		t.Limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &http.Client{Transport: t}
}
