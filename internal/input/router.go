package input

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
)

const component = "service.input"

// Outcome tells the caller what happened to an event.
type Outcome int

const (
	Handled Outcome = iota + 1
	Rejected
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Handled:
		return "handled"
	case Rejected:
		return "rejected"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Handler processes an event that matched the expectation.
type Handler func(ctx context.Context, ev Event, exp Expectation) error

type route struct {
	expect Expect
	kind   Kind
}

// Router resolves the expectation of a user and dispatches events.
type Router struct {
	sessions *session.Store
	stepper  *questionnaire.Stepper
	sender   notify.Sender

	routes map[route]Handler
	always map[Kind]Handler
}

// NewRouter returns an empty Router. Register handlers with On and Always
// before calling Handle.
func NewRouter(sessions *session.Store, stepper *questionnaire.Stepper, sender notify.Sender) *Router {
	return &Router{
		sessions: sessions,
		stepper:  stepper,
		sender:   sender,
		routes:   make(map[route]Handler),
		always:   make(map[Kind]Handler),
	}
}

// On registers h for events of kind k while e is expected.
func (r *Router) On(e Expect, k Kind, h Handler) {
	r.routes[route{expect: e, kind: k}] = h
}

// Always registers h for events of kind k regardless of the expectation.
// Commands and buttons are routed this way.
func (r *Router) Always(k Kind, h Handler) {
	r.always[k] = h
}

// Expectation resolves what userID is expected to send. Admin upload stages
// win over receipt and coupon flags, which win over the questionnaire.
func (r *Router) Expectation(ctx context.Context, userID int64) (Expectation, error) {
	sess := r.sessions.Get(ctx, userID)
	w := sess.Waiting
	switch w.Kind {
	case session.WaitAdminUpload:
		if w.Stage == session.StageDescription {
			return Expectation{Expect: ExpectPlanDescription}, nil
		}
		return Expectation{Expect: ExpectPlanFile}, nil
	case session.WaitReceiptPhoto:
		return Expectation{Expect: ExpectReceipt}, nil
	case session.WaitCouponCode:
		return Expectation{Expect: ExpectCoupon}, nil
	}

	p, err := r.stepper.Progress(ctx, userID)
	if err != nil {
		return Expectation{Expect: ExpectNone}, fmt.Errorf("load progress: %w", err)
	}
	live := p != nil && (p.Active() || p.EditMode)
	switch {
	case w.Kind == session.WaitQuestionnaire && !live:
		// Stale flag: the progress finished or was reset.
		if _, err := r.sessions.Merge(ctx, userID, session.Patch{Waiting: &session.Waiting{}}); err != nil {
			return Expectation{Expect: ExpectNone}, err
		}
		return Expectation{Expect: ExpectNone}, nil
	case !live:
		return Expectation{Expect: ExpectNone}, nil
	}

	exp := Expectation{Step: p.FocusStep(), Edit: p.EditMode}
	q, ok := r.stepper.Bank().Question(exp.Step)
	if !ok {
		return Expectation{Expect: ExpectNone}, nil
	}
	exp.Expect = forQuestion(q)

	if w.Kind != session.WaitQuestionnaire || w.Step != exp.Step {
		if w.Kind != session.WaitQuestionnaire && sess.ReturnedToHub {
			// The user left the questionnaire for the hub on purpose.
			return Expectation{Expect: ExpectNone}, nil
		}
		if _, err := r.sessions.Merge(ctx, userID, session.Patch{Waiting: session.Ptr(session.QuestionnaireStep(exp.Step))}); err != nil {
			return exp, err
		}
		exp.Healed = w.Kind != session.WaitQuestionnaire
		if exp.Healed {
			logger.Info(ctx, component, "input.self_heal",
				slog.String("status", "ok"),
				slog.Int64("user_id", userID),
				slog.Int("step", exp.Step),
			)
		}
	}
	return exp, nil
}

// Handle routes ev. Commands and buttons always reach their handler. Other
// events reach the handler for the current expectation when their kind
// matches; a mismatch sends the wrong-input notice; an idle user is ignored.
func (r *Router) Handle(ctx context.Context, ev Event) (Outcome, error) {
	if h, ok := r.always[ev.Kind]; ok {
		return Handled, h(ctx, ev, Expectation{Expect: ExpectNone})
	}

	exp, err := r.Expectation(ctx, ev.UserID)
	if err != nil {
		return Ignored, err
	}
	if exp.Expect == ExpectNone {
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, component, "input.route",
				slog.String("status", "ignored"),
				slog.Int64("user_id", ev.UserID),
				slog.String("input", ev.Kind.String()),
			)
		}
		return Ignored, nil
	}
	if !exp.Expect.Accepts(ev.Kind) {
		logger.Info(ctx, component, "input.route",
			slog.String("status", "rejected"),
			slog.Int64("user_id", ev.UserID),
			slog.String("expect", string(exp.Expect)),
			slog.String("input", ev.Kind.String()),
			slog.Int("step", exp.Step),
		)
		if r.sender != nil {
			if err := r.sender.Send(ctx, ev.UserID, notify.Message{Text: WrongInputMessage(exp), Plain: true}); err != nil {
				return Rejected, err
			}
		}
		return Rejected, nil
	}
	h, ok := r.routes[route{expect: exp.Expect, kind: ev.Kind}]
	if !ok {
		logger.Warn(ctx, component, "input.route",
			slog.String("status", "error"),
			slog.Int64("user_id", ev.UserID),
			slog.String("expect", string(exp.Expect)),
			slog.String("input", ev.Kind.String()),
			slog.String("reason", "no_handler"),
		)
		return Ignored, nil
	}
	return Handled, h(ctx, ev, exp)
}
