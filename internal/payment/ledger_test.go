package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3rciful/coachbot/internal/storage"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	docs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	l := NewLedger(docs)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	l.now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }
	return l
}

func TestLedgerNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	a, _ := l.Append(ctx, Record{UserID: 1, Course: "online_cardio", Amount: 100})
	b, _ := l.Append(ctx, Record{UserID: 1, Course: "online_weights", Amount: 200})

	recs, err := l.ListByUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ID != b.ID || recs[1].ID != a.ID {
		t.Fatalf("order = %+v", recs)
	}
	latest, ok, _ := l.Latest(ctx, 1)
	if !ok || latest.ID != b.ID {
		t.Fatalf("latest = %+v", latest)
	}
	if a.ID >= b.ID {
		t.Fatalf("ids not time ordered: %s >= %s", a.ID, b.ID)
	}
}

func TestLedgerResolveIsImmutable(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	rec, _ := l.Append(ctx, Record{UserID: 5, Course: "online_cardio"})

	got, err := l.Resolve(ctx, 5, rec.ID, ActionApprove, 900)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != StatusApproved || got.ResolvedBy != 900 || got.ResolvedAt.IsZero() {
		t.Fatalf("resolved = %+v", got)
	}
	if _, err := l.Resolve(ctx, 5, rec.ID, ActionReject, 901); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolve err = %v", err)
	}
	latest, _, _ := l.Latest(ctx, 5)
	if latest.Status != StatusApproved || latest.ResolvedBy != 900 {
		t.Fatalf("record changed after resolution: %+v", latest)
	}
	if _, err := l.LatestPending(ctx, 5); !errors.Is(err, ErrNoPendingPayment) {
		t.Fatalf("latest pending err = %v", err)
	}
}

func TestLedgerConcurrentResolveSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	rec, _ := l.Append(ctx, Record{UserID: 7, Course: "online_cardio"})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i, action := range []Action{ActionApprove, ActionReject, ActionApprove, ActionReject} {
		wg.Add(1)
		go func(admin int64, a Action) {
			defer wg.Done()
			if _, err := l.Resolve(ctx, 7, rec.ID, a, admin); err == nil {
				wins.Add(1)
			}
		}(int64(100+i), action)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want 1", wins.Load())
	}
}

func TestLedgerSupersede(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	old, _ := l.Append(ctx, Record{UserID: 3, Course: "online_cardio"})
	other, _ := l.Append(ctx, Record{UserID: 3, Course: "in_person"})

	closed, err := l.Supersede(ctx, 3, "online_cardio")
	if err != nil {
		t.Fatal(err)
	}
	if len(closed) != 1 || closed[0] != old.ID {
		t.Fatalf("closed = %v", closed)
	}
	pending, _ := l.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != other.ID {
		t.Fatalf("pending = %+v", pending)
	}
	again, err := l.Supersede(ctx, 3, "online_cardio")
	if err != nil || len(again) != 0 {
		t.Fatalf("second supersede = %v, %v", again, err)
	}
}

func TestCap(t *testing.T) {
	c := DefaultCap()
	accepted := 0
	for used := 0; used < 10; used++ {
		if c.Allowed(used, 0) {
			accepted++
		}
	}
	if accepted != 3 {
		t.Fatalf("accepted = %d, want 3", accepted)
	}
	if !c.Allowed(4, Grant(0, 2)) || c.Allowed(5, Grant(0, 2)) {
		t.Fatalf("grant of 2 should allow exactly 5")
	}
	if !c.Allowed(500_000, Grant(0, -1)) {
		t.Fatalf("unlimited grant should allow")
	}
	if Grant(UnlimitedAttempts, 3) != UnlimitedAttempts {
		t.Fatalf("unlimited should stay unlimited")
	}
	if c.Remaining(2, 0) != 1 || c.Remaining(9, 0) != 0 {
		t.Fatalf("remaining wrong")
	}
}
