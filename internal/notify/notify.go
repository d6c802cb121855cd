// Package notify delivers outbound messages to users and admins.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/fault"
)

const component = "service.notify"

// DefaultAdminTimeout bounds each admin send.
const DefaultAdminTimeout = 5 * time.Second

// Button is an inline callback button.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Message is an outbound message. PhotoID or DocumentID turns it into a media
// message with Text as caption.
type Message struct {
	Text       string
	Buttons    [][]Button
	PhotoID    string
	DocumentID string
	// Plain disables rich formatting.
	Plain bool
}

// Sender delivers a message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

// AdminDirectory lists the admins that receive notifications.
type AdminDirectory interface {
	AdminIDs() []int64
}

// Notifier sends user prompts with a plain-text fallback and fans admin
// notifications out in parallel.
type Notifier struct {
	sender  Sender
	admins  AdminDirectory
	timeout time.Duration
}

// New returns a Notifier; a non-positive timeout selects DefaultAdminTimeout.
func New(sender Sender, admins AdminDirectory, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultAdminTimeout
	}
	return &Notifier{sender: sender, admins: admins, timeout: timeout}
}

// User sends msg to userID. When that fails and fallback is not empty, one
// plain-text attempt with fallback is made.
func (n *Notifier) User(ctx context.Context, userID int64, msg Message, fallback string) error {
	err := n.sender.Send(ctx, userID, msg)
	if err == nil {
		return nil
	}
	logger.Warn(ctx, component, "notify.user",
		slog.String("status", "error"),
		slog.Int64("user_id", userID),
		logger.Err(err),
	)
	if fallback == "" {
		return fault.Notification("notify.user", err)
	}
	if ferr := n.sender.Send(ctx, userID, Message{Text: fallback, Plain: true}); ferr != nil {
		logger.Error(ctx, component, "notify.user_fallback",
			slog.String("status", "error"),
			slog.Int64("user_id", userID),
			logger.Err(ferr),
		)
		return fault.Notification("notify.user_fallback", errors.Join(err, ferr))
	}
	logger.Info(ctx, component, "notify.user_fallback",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
	)
	return nil
}

// Admins sends msg to every admin, each send bounded by the notifier timeout.
// A failing admin does not stop the others. It returns the number of admins
// reached and the joined send errors.
func (n *Notifier) Admins(ctx context.Context, msg Message) (int, error) {
	if n.admins == nil {
		return 0, nil
	}
	ids := n.admins.AdminIDs()
	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
			defer cancel()
			if err := n.sendBounded(sendCtx, id, msg); err != nil {
				errs[i] = fmt.Errorf("admin %d: %w", id, err)
				logger.Warn(ctx, component, "notify.admin",
					slog.String("status", "error"),
					slog.Int64("admin_id", id),
					logger.Err(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	sent := 0
	for _, err := range errs {
		if err == nil {
			sent++
		}
	}
	if joined := errors.Join(errs...); joined != nil {
		return sent, fault.Notification("notify.admins", joined)
	}
	return sent, nil
}

// sendBounded returns when the send finishes or ctx expires, whichever is first.
func (n *Notifier) sendBounded(ctx context.Context, chatID int64, msg Message) error {
	done := make(chan error, 1)
	go func() { done <- n.sender.Send(ctx, chatID, msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
