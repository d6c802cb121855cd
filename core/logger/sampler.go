package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets num out of every den events through. A zero ratio lets
// everything through.
type ratioSampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seen  atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the window.
func (s *ratioSampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	num = min(num, den)
	s.ratio.Store(uint64(uint32(num))<<32 | uint64(uint32(den)))
	s.seen.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	num, den := r>>32, r&0xffffffff
	if num == 0 || den == 0 {
		return true
	}
	return (s.seen.Add(1)-1)%den < num
}

// parseRatioSpec reads "num/den" or "den" (one in den). Anything else, or a
// non-positive value, yields 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		num, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return 0, 0
		}
		den, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, 0
		}
		return num, den
	}
	den, err := strconv.Atoi(spec)
	if err != nil || den <= 0 {
		return 0, 0
	}
	return 1, den
}
