package utils

import (
	"net"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds a whole request made with GlobalHTTPClient.
// Image generation can take longer and builds its own client.
const DefaultHTTPTimeout = 60 * time.Second

// GlobalHTTPClient is shared by the model, wiki and image clients.
var GlobalHTTPClient = NewHTTPClient(DefaultHTTPTimeout)

var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          50,
	MaxIdleConnsPerHost:   8,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: time.Second,
}

// NewHTTPClient returns a client on the shared connection pool with the
// given overall timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Transport: sharedTransport, Timeout: timeout}
}
