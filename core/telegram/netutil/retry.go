// Package netutil classifies network errors from Telegram API calls.
package netutil

import (
	"errors"
	"net"
	"net/url"
	"syscall"
)

// ShouldRetry reports whether err is a transient transport failure: a
// timeout, a refused or reset connection or a failed dial.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		return ShouldRetry(urlErr.Err)
	}
	return false
}
