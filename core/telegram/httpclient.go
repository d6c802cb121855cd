package telegram

import (
	"net"
	"net/http"
	"time"
)

// Long polling holds the request open for the poll timeout, so the client
// timeout has to exceed it.
const (
	dialTimeout      = 5 * time.Second
	tlsTimeout       = 5 * time.Second
	idleConnTimeout  = 90 * time.Second
	keepAlive        = 30 * time.Second
	clientTimeoutPad = 20 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls with the
// given long-poll timeout. Retries happen in the sender dispatcher.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   pollTimeout + clientTimeoutPad,
		Transport: transport,
	}
}
