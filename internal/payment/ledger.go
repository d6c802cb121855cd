package payment

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/storage"
)

const component = "service.payment"

var (
	// ErrNoPendingPayment means the user has no record awaiting approval.
	ErrNoPendingPayment = errors.New("payment: no pending payment")
	// ErrAlreadyResolved means the record left pending before this write.
	ErrAlreadyResolved = errors.New("payment: already resolved")
)

// Ledger stores every user's records in one document keyed by user id, so a
// user's history is read and written atomically.
type Ledger struct {
	docs storage.Store
	now  func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewLedger returns a Ledger over docs.
func NewLedger(docs storage.Store) *Ledger {
	return &Ledger{
		docs:    docs,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

type userLedger struct {
	Records []Record `json:"records"`
}

func key(userID int64) string { return strconv.FormatInt(userID, 10) }

func (l *Ledger) newID(at time.Time) string {
	l.entropyMu.Lock()
	defer l.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), l.entropy).String()
}

// Append stores rec as a new pending record. ID, CreatedAt and LastUpdated are assigned.
func (l *Ledger) Append(ctx context.Context, rec Record) (Record, error) {
	now := l.now().UTC()
	rec.ID = l.newID(now)
	rec.Status = StatusPending
	rec.CreatedAt = now
	rec.LastUpdated = now
	err := storage.UpdateJSON(ctx, l.docs, storage.Payments, key(rec.UserID), func(u *userLedger, _ bool) error {
		u.Records = append(u.Records, rec)
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("append payment: %w", err)
	}
	logger.Info(ctx, component, "payment.append",
		slog.String("status", "ok"),
		slog.Int64("user_id", rec.UserID),
		slog.String("payment_id", rec.ID),
		slog.String("course", rec.Course),
		slog.Int64("amount", rec.Amount),
	)
	return rec, nil
}

// ListByUser returns the user's records newest first.
func (l *Ledger) ListByUser(ctx context.Context, userID int64) ([]Record, error) {
	u, err := storage.GetJSON[userLedger](ctx, l.docs, storage.Payments, key(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	sortNewestFirst(u.Records)
	return u.Records, nil
}

func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}

// Latest returns the user's most recent record, or false when there is none.
func (l *Ledger) Latest(ctx context.Context, userID int64) (Record, bool, error) {
	recs, err := l.ListByUser(ctx, userID)
	if err != nil || len(recs) == 0 {
		return Record{}, false, err
	}
	return recs[0], true, nil
}

// LatestPending returns the most recent record awaiting approval.
func (l *Ledger) LatestPending(ctx context.Context, userID int64) (Record, error) {
	recs, err := l.ListByUser(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	for _, r := range recs {
		if r.Pending() {
			return r, nil
		}
	}
	return Record{}, ErrNoPendingPayment
}

// Resolve moves record id from pending to the status implied by action. The
// write is a compare-and-set: a record that already left pending is never
// changed and ErrAlreadyResolved is returned.
func (l *Ledger) Resolve(ctx context.Context, userID int64, id string, action Action, adminID int64) (Record, error) {
	var out Record
	err := storage.UpdateJSON(ctx, l.docs, storage.Payments, key(userID), func(u *userLedger, _ bool) error {
		for i := range u.Records {
			r := &u.Records[i]
			if r.ID != id {
				continue
			}
			if !r.Pending() {
				return ErrAlreadyResolved
			}
			now := l.now().UTC()
			r.Status = action.Result()
			r.ResolvedBy = adminID
			r.ResolvedAt = now
			r.LastUpdated = now
			out = *r
			return nil
		}
		return ErrNoPendingPayment
	})
	if err != nil {
		return Record{}, fmt.Errorf("resolve payment %s: %w", id, err)
	}
	logger.Info(ctx, component, "payment.resolve",
		slog.String("status", "ok"),
		slog.String("action", string(action)),
		slog.Int64("admin_id", adminID),
		slog.Int64("user_id", userID),
		slog.String("payment_id", id),
		slog.String("course", out.Course),
	)
	return out, nil
}

// Supersede closes every pending record of the user for course so a new
// receipt replaces them. It returns the ids that were closed.
func (l *Ledger) Supersede(ctx context.Context, userID int64, course string) ([]string, error) {
	var closed []string
	err := storage.UpdateJSON(ctx, l.docs, storage.Payments, key(userID), func(u *userLedger, exists bool) error {
		closed = closed[:0]
		now := l.now().UTC()
		for i := range u.Records {
			r := &u.Records[i]
			if r.Pending() && r.Course == course {
				r.Status = StatusRejected
				r.Note = NoteSuperseded
				r.ResolvedAt = now
				r.LastUpdated = now
				closed = append(closed, r.ID)
			}
		}
		if len(closed) == 0 {
			return storage.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("supersede payments: %w", err)
	}
	return closed, nil
}

// Pending returns every pending record across users, oldest first.
func (l *Ledger) Pending(ctx context.Context) ([]Record, error) {
	var out []Record
	err := storage.ScanJSON(ctx, l.docs, storage.Payments, func(_ string, u userLedger) error {
		for _, r := range u.Records {
			if r.Pending() {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan payments: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
