package middleware

import (
	"sync"
	"testing"
	"time"
)

func TestCooldownDropsRepeatedAction(t *testing.T) {
	cd := newCooldown(500 * time.Millisecond)
	now := time.Unix(1_700_000_000, 0)
	if !cd.allow(1, "cb:approve|7", now) {
		t.Fatal("first tap dropped")
	}
	if cd.allow(1, "cb:approve|7", now.Add(200*time.Millisecond)) {
		t.Fatal("duplicate tap admitted")
	}
	if !cd.allow(1, "cb:reject|7", now.Add(200*time.Millisecond)) {
		t.Fatal("different action dropped")
	}
	if !cd.allow(2, "cb:approve|7", now.Add(200*time.Millisecond)) {
		t.Fatal("other user dropped")
	}
	if !cd.allow(1, "cb:approve|7", now.Add(time.Second)) {
		t.Fatal("tap after window dropped")
	}
}

func TestSequencerKeepsPerUserOrder(t *testing.T) {
	s := NewSequencer(4)
	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := range 50 {
		for _, uid := range []int64{1, 2, 3} {
			s.submit(uid, func() {
				mu.Lock()
				got[uid] = append(got[uid], i)
				mu.Unlock()
			})
		}
	}
	s.Wait()
	for uid, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("user %d handled %d updates", uid, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("user %d order broken at %d: %v", uid, i, seq)
			}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lanes) != 0 {
		t.Fatalf("lanes left: %d", len(s.lanes))
	}
}

func TestSequencerRunsUsersInParallel(t *testing.T) {
	s := NewSequencer(1)
	release := make(chan struct{})
	done := make(chan struct{})
	s.submit(1, func() { <-release })
	s.submit(2, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("user 2 blocked behind user 1")
	}
	close(release)
	s.Wait()
}
