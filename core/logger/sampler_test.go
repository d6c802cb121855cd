package logger

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestParseRatioSpec(t *testing.T) {
	cases := []struct {
		in       string
		num, den int
	}{
		{"1/50", 1, 50},
		{" 3 / 10 ", 3, 10},
		{"20", 1, 20},
		{"0", 0, 0},
		{"x/2", 0, 0},
		{"", 0, 0},
	}
	for _, tc := range cases {
		num, den := parseRatioSpec(tc.in)
		if num != tc.num || den != tc.den {
			t.Errorf("parseRatioSpec(%q) = %d/%d, want %d/%d", tc.in, num, den, tc.num, tc.den)
		}
	}
}

func TestRatioSamplerWindow(t *testing.T) {
	s := newRatioSampler(2, 5)
	passed := 0
	for range 20 {
		if s.Allow() {
			passed++
		}
	}
	if passed != 8 {
		t.Fatalf("passed = %d, want 8", passed)
	}

	s.Set(0, 0)
	for range 3 {
		if !s.Allow() {
			t.Fatal("disabled sampler must allow everything")
		}
	}
}

type failingSink struct{}

func (failingSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFlushAndError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 16)
	for _, line := range []string{"a\n", "b\n", "c\n"} {
		if err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := buf.String(); got != "a\nb\nc\n" {
		t.Fatalf("buffer = %q", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	bad := newAsyncWriter([]io.Writer{failingSink{}}, 16)
	_ = bad.Write([]byte("x\n"))
	if err := bad.Close(); err == nil {
		t.Fatal("expected sink error on close")
	}
}
