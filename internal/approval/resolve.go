package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/catalog"
	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
)

// Next is what the user is asked to do after a resolution.
type Next string

const (
	NextFreshStart   Next = "questionnaire_start"
	NextResume       Next = "questionnaire_resume"
	NextEditMenu     Next = "questionnaire_edit_menu"
	NextProgramReady Next = "program_ready"
	NextResubmit     Next = "resubmit"
)

// Prompts renders the user-facing messages sent after a resolution.
type Prompts interface {
	Resolved(rec payment.Record, next Next, progress *questionnaire.Progress) notify.Message
	// Fallback is the plain text sent when the rich prompt cannot be delivered.
	Fallback(rec payment.Record, next Next) string
}

// Deps are the collaborators of the Coordinator.
type Deps struct {
	Sessions *session.Store
	Ledger   *payment.Ledger
	Stepper  *questionnaire.Stepper
	Catalog  *catalog.Catalog
	Notifier *notify.Notifier
	Prompts  Prompts
}

// Result describes a finished resolution.
type Result struct {
	Record payment.Record
	Next   Next
	// NotifyErr is set when the user could not be told, not even by the
	// plain-text fallback. The resolution stands regardless.
	NotifyErr error
}

// Resolve applies action to the latest pending payment of userID. The caller
// must hold the admission from Begin.
func (c *Coordinator) Resolve(ctx context.Context, userID int64, action payment.Action, adminID int64) (Result, error) {
	pending, err := c.Ledger.LatestPending(ctx, userID)
	if err != nil {
		if !errors.Is(err, payment.ErrNoPendingPayment) {
			return Result{}, err
		}
		// A resolved latest record means another admin got there first.
		if latest, ok, lerr := c.Ledger.Latest(ctx, userID); lerr == nil && ok && !latest.Pending() {
			logConflict(ctx, userID, action, adminID, "already_resolved")
			return Result{}, fault.Conflict("approval.already_resolved", fmt.Errorf("%w: %w", ErrConflict, payment.ErrAlreadyResolved))
		}
		return Result{}, fault.State("payment.none_pending", err)
	}
	rec, err := c.Ledger.Resolve(ctx, userID, pending.ID, action, adminID)
	if err != nil {
		if errors.Is(err, payment.ErrAlreadyResolved) {
			logConflict(ctx, userID, action, adminID, "already_resolved")
			return Result{}, fault.Conflict("approval.already_resolved", fmt.Errorf("%w: %w", ErrConflict, err))
		}
		return Result{}, err
	}

	patch := session.Patch{
		PaymentStatus: session.Ptr(rec.Status),
		ReturnedToHub: session.Ptr(false),
	}
	if action == payment.ActionApprove {
		patch.Course = session.Ptr(rec.Course)
		patch.ReceiptAttempts = map[string]int{rec.Course: -1}
		patch.ExtraAttempts = map[string]int{rec.Course: -1}
	}
	if _, err := c.Sessions.Merge(ctx, userID, patch); err != nil {
		return Result{Record: rec}, fmt.Errorf("update session: %w", err)
	}

	res := Result{Record: rec, Next: NextResubmit}
	var progress *questionnaire.Progress
	if action == payment.ActionApprove {
		res.Next, progress = c.next(ctx, userID, rec.Course)
	}
	logger.Info(ctx, component, "approval.resolve",
		slog.String("status", "ok"),
		slog.String("action", string(action)),
		slog.Int64("admin_id", adminID),
		slog.Int64("user_id", userID),
		slog.String("payment_id", rec.ID),
		slog.String("course", rec.Course),
		slog.String("next", string(res.Next)),
	)

	if c.Notifier != nil && c.Prompts != nil {
		msg := c.Prompts.Resolved(rec, res.Next, progress)
		if err := c.Notifier.User(ctx, userID, msg, c.Prompts.Fallback(rec, res.Next)); err != nil {
			res.NotifyErr = err
			logger.Error(ctx, component, "approval.notify_user",
				slog.String("status", "error"),
				slog.Int64("user_id", userID),
				slog.String("payment_id", rec.ID),
				logger.Err(err),
			)
		}
	}
	return res, nil
}

// next picks the prompt for an approved course from the questionnaire progress.
func (c *Coordinator) next(ctx context.Context, userID int64, course string) (Next, *questionnaire.Progress) {
	if c.Catalog != nil && !c.Catalog.RequiresQuestionnaire(course) {
		return NextProgramReady, nil
	}
	p, err := c.Stepper.Progress(ctx, userID)
	if err != nil {
		logger.Warn(ctx, component, "approval.progress",
			slog.String("status", "error"),
			slog.Int64("user_id", userID),
			logger.Err(err),
		)
		return NextFreshStart, nil
	}
	switch {
	case p == nil:
		return NextFreshStart, nil
	case p.Completed:
		return NextEditMenu, p
	default:
		return NextResume, p
	}
}

// GrantExtraAttempts adds n receipt attempts for userID and course; n < 0
// grants unlimited attempts. It returns the new number of extra attempts.
func (c *Coordinator) GrantExtraAttempts(ctx context.Context, userID int64, course string, n int, adminID int64) (int, error) {
	if c.Catalog != nil {
		if _, ok := c.Catalog.Course(course); !ok {
			return 0, fault.Validation("grant.unknown_course", "دوره نامعتبر است.")
		}
	}
	total, err := c.Sessions.AddExtraAttempts(ctx, userID, course, n)
	if err != nil {
		return 0, err
	}
	logger.Info(ctx, component, "approval.grant",
		slog.String("status", "ok"),
		slog.Int64("admin_id", adminID),
		slog.Int64("user_id", userID),
		slog.String("course", course),
		slog.Int("count", total),
	)
	return total, nil
}

func logConflict(ctx context.Context, userID int64, action payment.Action, adminID int64, reason string) {
	logger.Warn(ctx, component, "approval.resolve",
		slog.String("status", "conflict"),
		slog.String("action", string(action)),
		slog.Int64("admin_id", adminID),
		slog.Int64("user_id", userID),
		slog.String("reason", reason),
	)
}
