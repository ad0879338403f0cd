package tool

import (
	"crypto/tls"
	"net/http"
	"time"
)

var DefaultIdleConnTimeout = 90 * time.Second

// NewHTTPClient creates the client used to talk to the remote store.
// timeout <= 0 means no overall request timeout; large chunk transfers are
// bounded by the caller's context instead.
func NewHTTPClient(timeout time.Duration, insecureSkipVerify bool, maxConnsPerHost int) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: maxConnsPerHost,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		DisableKeepAlives:   false,
	}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client := &http.Client{Transport: transport}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
