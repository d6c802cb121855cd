package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/catalog"
	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
	"github.com/m3rciful/coachbot/internal/storage"
)

const component = "service.workflow"

// Presenter renders the notifications the machine sends by itself.
type Presenter interface {
	ReceiptForAdmins(rec payment.Record, sess *session.Session, remaining int) notify.Message
	QuestionnaireForAdmins(sess *session.Session, summary string) notify.Message
	PlanForUser(plan Plan) notify.Message
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Docs      storage.Store
	Sessions  *session.Store
	Ledger    *payment.Ledger
	Stepper   *questionnaire.Stepper
	Catalog   *catalog.Catalog
	Notifier  *notify.Notifier
	Presenter Presenter
	Cap       payment.Cap
}

// Machine applies user transitions and derives the funnel state.
type Machine struct {
	Deps
	now func() time.Time
}

// New returns a Machine over d.
func New(d Deps) *Machine {
	if d.Cap.Base <= 0 {
		d.Cap = payment.DefaultCap()
	}
	return &Machine{Deps: d, now: time.Now}
}

// Profile identifies a Telegram user.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
}

// Snapshot is everything the state is derived from.
type Snapshot struct {
	Session  *session.Session
	Latest   *payment.Record
	Progress *questionnaire.Progress
}

// Snapshot loads the inputs of Derive for userID.
func (m *Machine) Snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	snap := Snapshot{Session: m.Sessions.Get(ctx, userID)}
	latest, ok, err := m.Ledger.Latest(ctx, userID)
	if err != nil {
		return snap, fmt.Errorf("latest payment: %w", err)
	}
	if ok {
		snap.Latest = &latest
	}
	progress, err := m.Stepper.Progress(ctx, userID)
	if err != nil {
		return snap, err
	}
	snap.Progress = progress
	return snap, nil
}

// Status derives the current state of userID. It never fails: any error or
// panic yields RETURNING_NO_COURSE.
func (m *Machine) Status(ctx context.Context, userID int64) (st State) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, component, "workflow.status",
				slog.String("status", "panic"),
				slog.Int64("user_id", userID),
				slog.Any("panic", r),
			)
			st = StateReturningNoCourse
		}
	}()
	snap, err := m.Snapshot(ctx, userID)
	if err != nil {
		logger.Warn(ctx, component, "workflow.status",
			slog.String("status", "error"),
			slog.Int64("user_id", userID),
			logger.Err(err),
		)
		return StateReturningNoCourse
	}
	return Derive(snap.Session, snap.Latest, snap.Progress, m.Catalog)
}

// Start registers the user, drops any pending input and returns to the hub.
func (m *Machine) Start(ctx context.Context, p Profile) (*session.Session, error) {
	if _, err := m.Sessions.ClearTransient(ctx, p.UserID, "start"); err != nil {
		return nil, err
	}
	return m.Sessions.Merge(ctx, p.UserID, session.Patch{
		StartedBot:    session.Ptr(true),
		Username:      session.Ptr(p.Username),
		FirstName:     session.Ptr(p.FirstName),
		ReturnedToHub: session.Ptr(true),
	})
}

// ReturnToHub clears transient input and marks the user as back at the hub.
func (m *Machine) ReturnToHub(ctx context.Context, userID int64, reason string) ([]string, error) {
	cleared, err := m.Sessions.ClearTransient(ctx, userID, reason)
	if err != nil {
		return nil, err
	}
	if err := m.Sessions.MarkReturnedToHub(ctx, userID); err != nil {
		return cleared, err
	}
	return cleared, nil
}

// SelectCourse records the course the user is looking at.
func (m *Machine) SelectCourse(ctx context.Context, userID int64, courseID string) (catalog.Course, error) {
	course, ok := m.Catalog.Course(courseID)
	if !ok {
		return catalog.Course{}, fault.State("course.unknown", ErrUnknownCourse)
	}
	_, err := m.Sessions.Merge(ctx, userID, session.Patch{
		CourseSelected: session.Ptr(course.ID),
		ReturnedToHub:  session.Ptr(false),
		Waiting:        &session.Waiting{},
		PendingCoupon:  session.Ptr(""),
	})
	if err != nil {
		return catalog.Course{}, err
	}
	logger.Info(ctx, component, "workflow.select_course",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("course", course.ID),
	)
	return course, nil
}

// Quote is the price the user pays for a course.
type Quote struct {
	Course  catalog.Course
	Coupon  string
	Percent int
	Price   int64
	Final   int64
}

func (m *Machine) quote(course catalog.Course, code string) Quote {
	q := Quote{Course: course, Price: course.Price, Final: course.Price}
	if code == "" {
		return q
	}
	if cp, ok := m.Catalog.Coupon(code, course.ID); ok {
		q.Coupon = cp.Code
		q.Percent = cp.Percent
		q.Final = catalog.Discount(course.Price, cp.Percent)
	}
	return q
}

// selectedCourse returns the course the session points at.
func (m *Machine) selectedCourse(sess *session.Session) (catalog.Course, error) {
	if sess.CourseSelected == "" {
		return catalog.Course{}, fault.State("course.none_selected", ErrNoCourseSelected)
	}
	course, ok := m.Catalog.Course(sess.CourseSelected)
	if !ok {
		return catalog.Course{}, fault.State("course.unknown", ErrUnknownCourse)
	}
	return course, nil
}

func (m *Machine) checkCap(sess *session.Session, course string) error {
	if !m.Cap.Allowed(sess.Attempts(course), sess.Extra(course)) {
		return fault.State("receipt.attempts_exhausted", ErrAttemptsExhausted)
	}
	return nil
}

// RequestReceipt makes the next image from the user count as the receipt for
// the selected course.
func (m *Machine) RequestReceipt(ctx context.Context, userID int64) (Quote, error) {
	sess := m.Sessions.Get(ctx, userID)
	course, err := m.selectedCourse(sess)
	if err != nil {
		return Quote{}, err
	}
	if err := m.checkCap(sess, course.ID); err != nil {
		return Quote{}, err
	}
	if _, err := m.Sessions.Merge(ctx, userID, session.Patch{Waiting: session.Ptr(session.ReceiptPhoto(course.ID))}); err != nil {
		return Quote{}, err
	}
	return m.quote(course, sess.PendingCoupon), nil
}

// RequestCoupon makes the next text from the user count as a coupon code.
func (m *Machine) RequestCoupon(ctx context.Context, userID int64) (catalog.Course, error) {
	sess := m.Sessions.Get(ctx, userID)
	course, err := m.selectedCourse(sess)
	if err != nil {
		return catalog.Course{}, err
	}
	if _, err := m.Sessions.Merge(ctx, userID, session.Patch{Waiting: session.Ptr(session.CouponCode(course.ID))}); err != nil {
		return catalog.Course{}, err
	}
	return course, nil
}

// ApplyCoupon stages code for the next receipt. An unknown code leaves the user
// waiting for another code.
func (m *Machine) ApplyCoupon(ctx context.Context, userID int64, code string) (Quote, error) {
	sess := m.Sessions.Get(ctx, userID)
	if sess.Waiting.Kind != session.WaitCouponCode {
		return Quote{}, fault.State("coupon.no_context", ErrNoCouponContext)
	}
	course, ok := m.Catalog.Course(sess.Waiting.Course)
	if !ok {
		return Quote{}, fault.State("course.unknown", ErrUnknownCourse)
	}
	cp, ok := m.Catalog.Coupon(code, course.ID)
	if !ok {
		return Quote{}, fault.Validation("coupon.invalid", "❌ کد تخفیف نامعتبر است یا برای این دوره قابل استفاده نیست.")
	}
	_, err := m.Sessions.Merge(ctx, userID, session.Patch{
		PendingCoupon: session.Ptr(cp.Code),
		Waiting:       session.Ptr(session.ReceiptPhoto(course.ID)),
	})
	if err != nil {
		return Quote{}, err
	}
	logger.Info(ctx, component, "workflow.coupon",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("course", course.ID),
		slog.String("coupon", cp.Code),
	)
	return m.quote(course, cp.Code), nil
}

// Receipt is the result of a receipt submission.
type Receipt struct {
	Record        payment.Record
	Superseded    []string
	Remaining     int
	AdminsReached int
}

// SubmitReceipt records the receipt image for the awaited course, replaces any
// older pending receipt for it and notifies the admins. Notification failures
// are logged and do not undo the submission.
func (m *Machine) SubmitReceipt(ctx context.Context, userID int64, fileID string) (Receipt, error) {
	sess := m.Sessions.Get(ctx, userID)
	if sess.Waiting.Kind != session.WaitReceiptPhoto {
		return Receipt{}, fault.State("receipt.no_context", ErrNoReceiptContext)
	}
	course, ok := m.Catalog.Course(sess.Waiting.Course)
	if !ok {
		return Receipt{}, fault.State("course.unknown", ErrUnknownCourse)
	}
	if err := m.checkCap(sess, course.ID); err != nil {
		if _, clearErr := m.Sessions.ClearTransient(ctx, userID, "attempts_exhausted"); clearErr != nil {
			return Receipt{}, errors.Join(err, clearErr)
		}
		logger.Warn(ctx, component, "workflow.receipt",
			slog.String("status", "rejected"),
			slog.Int64("user_id", userID),
			slog.String("course", course.ID),
			slog.Int("attempts", sess.Attempts(course.ID)),
		)
		return Receipt{}, err
	}

	superseded, err := m.Ledger.Supersede(ctx, userID, course.ID)
	if err != nil {
		return Receipt{}, err
	}
	q := m.quote(course, sess.PendingCoupon)
	rec := payment.Record{
		UserID:        userID,
		Course:        course.ID,
		Amount:        q.Final,
		Coupon:        q.Coupon,
		ReceiptFileID: fileID,
	}
	if q.Coupon != "" {
		rec.OriginalAmount = q.Price
	}
	rec, err = m.Ledger.Append(ctx, rec)
	if err != nil {
		return Receipt{}, err
	}
	used := sess.Attempts(course.ID) + 1
	sess, err = m.Sessions.Merge(ctx, userID, session.Patch{
		PaymentStatus:   session.Ptr(payment.StatusPending),
		ReturnedToHub:   session.Ptr(false),
		Waiting:         &session.Waiting{},
		PendingCoupon:   session.Ptr(""),
		ReceiptAttempts: map[string]int{course.ID: used},
	})
	if err != nil {
		return Receipt{}, err
	}

	out := Receipt{
		Record:     rec,
		Superseded: superseded,
		Remaining:  m.Cap.Remaining(used, sess.Extra(course.ID)),
	}
	if m.Notifier != nil && m.Presenter != nil {
		reached, nerr := m.Notifier.Admins(ctx, m.Presenter.ReceiptForAdmins(rec, sess, out.Remaining))
		out.AdminsReached = reached
		if nerr != nil {
			logger.Warn(ctx, component, "workflow.receipt_notify",
				slog.String("status", "error"),
				slog.String("payment_id", rec.ID),
				slog.Int("count", reached),
				logger.Err(nerr),
			)
		}
	}
	logger.Info(ctx, component, "workflow.receipt",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("payment_id", rec.ID),
		slog.String("course", course.ID),
		slog.Int("attempts", used),
	)
	return out, nil
}
