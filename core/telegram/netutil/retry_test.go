package netutil

import (
	"errors"
	"net"
	"net/url"
	"syscall"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"reset", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: syscall.ECONNRESET}, true},
		{"dns", &net.DNSError{Err: "no such host", IsTimeout: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldRetry(tc.err); got != tc.want {
				t.Fatalf("ShouldRetry(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
