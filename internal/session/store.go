package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/storage"
)

const component = "service.session"

// PaymentLister returns a user's payments newest first.
type PaymentLister interface {
	ListByUser(ctx context.Context, userID int64) ([]payment.Record, error)
}

// Store reads and merges sessions kept in the sessions collection.
type Store struct {
	docs     storage.Store
	payments PaymentLister
	now      func() time.Time
}

// NewStore builds a Store over docs. payments backs LoadPayments.
func NewStore(docs storage.Store, payments PaymentLister) *Store {
	return &Store{docs: docs, payments: payments, now: time.Now}
}

func key(userID int64) string { return strconv.FormatInt(userID, 10) }

func (s *Store) fresh(userID int64) *Session {
	now := s.now().UTC()
	return &Session{UserID: userID, CreatedAt: now, LastUpdated: now}
}

// Get returns the user's session or a default one when none is stored.
// Read failures are logged and yield the default.
func (s *Store) Get(ctx context.Context, userID int64) *Session {
	sess, err := storage.GetJSON[Session](ctx, s.docs, storage.Sessions, key(userID))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn(ctx, component, "session.read",
				slog.String("status", "error"),
				slog.Int64("user_id", userID),
				logger.Err(err),
			)
		}
		return s.fresh(userID)
	}
	sess.UserID = userID
	return &sess
}

// Merge applies p to the stored session and persists it before returning the result.
func (s *Store) Merge(ctx context.Context, userID int64, p Patch) (*Session, error) {
	var out Session
	err := storage.UpdateJSON(ctx, s.docs, storage.Sessions, key(userID), func(sess *Session, exists bool) error {
		if !exists {
			*sess = *s.fresh(userID)
		}
		sess.UserID = userID
		p.apply(sess)
		sess.LastUpdated = s.now().UTC()
		out = *sess
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("merge session %d: %w", userID, err)
	}
	return &out, nil
}

// AddExtraAttempts adds n to the user's extra receipt attempts for course in a
// single read-modify-write and returns the new total. n < 0 grants unlimited.
func (s *Store) AddExtraAttempts(ctx context.Context, userID int64, course string, n int) (int, error) {
	var total int
	err := storage.UpdateJSON(ctx, s.docs, storage.Sessions, key(userID), func(sess *Session, exists bool) error {
		if !exists {
			*sess = *s.fresh(userID)
		}
		sess.UserID = userID
		total = payment.Grant(sess.Extra(course), n)
		if sess.ExtraAttempts == nil {
			sess.ExtraAttempts = make(map[string]int)
		}
		sess.ExtraAttempts[course] = total
		sess.LastUpdated = s.now().UTC()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("grant attempts %d: %w", userID, err)
	}
	return total, nil
}

// LoadPayments returns the user's payment records newest first.
func (s *Store) LoadPayments(ctx context.Context, userID int64) ([]payment.Record, error) {
	if s.payments == nil {
		return nil, nil
	}
	return s.payments.ListByUser(ctx, userID)
}

// ClearTransient drops the waiting state and any staged coupon. It returns the
// names of the flags that were set; a second call returns none.
func (s *Store) ClearTransient(ctx context.Context, userID int64, reason string) ([]string, error) {
	var cleared []string
	err := storage.UpdateJSON(ctx, s.docs, storage.Sessions, key(userID), func(sess *Session, exists bool) error {
		cleared = cleared[:0]
		if !exists {
			*sess = *s.fresh(userID)
			return storage.ErrNoChange
		}
		if name := sess.Waiting.flagName(); name != "" {
			cleared = append(cleared, name)
		}
		if sess.PendingCoupon != "" {
			cleared = append(cleared, "pending_coupon")
		}
		if len(cleared) == 0 {
			return storage.ErrNoChange
		}
		sess.Waiting = Waiting{}
		sess.PendingCoupon = ""
		sess.LastUpdated = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("clear transient %d: %w", userID, err)
	}
	if len(cleared) > 0 {
		logger.Info(ctx, component, "session.clear_transient",
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.String("reason", reason),
			slog.Any("cleared", cleared),
		)
	}
	return cleared, nil
}

// MarkReturnedToHub records that the user navigated back to the main menu.
func (s *Store) MarkReturnedToHub(ctx context.Context, userID int64) error {
	_, err := s.Merge(ctx, userID, Patch{ReturnedToHub: Ptr(true)})
	return err
}

// All returns every stored session ordered by user id.
func (s *Store) All(ctx context.Context) ([]*Session, error) {
	var out []*Session
	err := storage.ScanJSON(ctx, s.docs, storage.Sessions, func(k string, sess Session) error {
		if id, err := strconv.ParseInt(k, 10, 64); err == nil {
			sess.UserID = id
		}
		out = append(out, &sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
