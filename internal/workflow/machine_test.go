package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
	"github.com/m3rciful/coachbot/internal/storage"
)

func TestSubmitReceiptPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	out, err := f.submit(t, 1, "online_cardio")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Record.Status != payment.StatusPending || out.Record.Amount != 1_000_000 {
		t.Fatalf("record = %+v", out.Record)
	}
	if got := f.m.Status(ctx, 1); got != StatePaymentPending {
		t.Fatalf("status = %s", got)
	}
	sess := f.m.Sessions.Get(ctx, 1)
	if !sess.Waiting.Idle() || sess.PaymentStatus != payment.StatusPending || sess.Attempts("online_cardio") != 1 {
		t.Fatalf("session = %+v", sess)
	}
	if out.AdminsReached != 1 || f.sender.count(adminID) != 1 {
		t.Fatalf("admins not notified: %d", out.AdminsReached)
	}
}

func TestReceiptCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	accepted := 0
	var lastErr error
	for i := 0; i < 4; i++ {
		if _, err := f.submit(t, 2, "online_cardio"); err != nil {
			lastErr = err
			continue
		}
		accepted++
	}
	if accepted != 3 {
		t.Fatalf("accepted = %d, want 3", accepted)
	}
	if !errors.Is(lastErr, ErrAttemptsExhausted) {
		t.Fatalf("4th err = %v, want ErrAttemptsExhausted", lastErr)
	}

	// The receipt itself is refused when the cap was reached after arming it.
	_, _ = f.m.Sessions.Merge(ctx, 2, session.Patch{Waiting: session.Ptr(session.ReceiptPhoto("online_cardio"))})
	if _, err := f.m.SubmitReceipt(ctx, 2, "x"); !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("direct submit err = %v", err)
	}
	if sess := f.m.Sessions.Get(ctx, 2); !sess.Waiting.Idle() {
		t.Fatalf("waiting kept after cap: %+v", sess.Waiting)
	}

	_, _ = f.m.Sessions.Merge(ctx, 2, session.Patch{ExtraAttempts: map[string]int{"online_cardio": payment.Grant(0, 2)}})
	accepted = 0
	for i := 0; i < 4; i++ {
		if _, err := f.submit(t, 2, "online_cardio"); err == nil {
			accepted++
		}
	}
	if accepted != 2 {
		t.Fatalf("accepted after grant = %d, want 2", accepted)
	}
	if _, err := f.submit(t, 2, "in_person"); err != nil {
		t.Fatalf("cap should be per course: %v", err)
	}
}

func TestResubmissionSupersedes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, _ := f.submit(t, 3, "online_cardio")
	second, err := f.submit(t, 3, "online_cardio")
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Superseded) != 1 || second.Superseded[0] != first.Record.ID {
		t.Fatalf("superseded = %v", second.Superseded)
	}
	pending, _ := f.m.Ledger.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != second.Record.ID {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestCouponFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.m.Start(ctx, Profile{UserID: 4})
	if _, err := f.m.ApplyCoupon(ctx, 4, "SPRING"); !errors.Is(err, ErrNoCouponContext) {
		t.Fatalf("err = %v, want ErrNoCouponContext", err)
	}
	if _, err := f.m.RequestCoupon(ctx, 4); !errors.Is(err, ErrNoCourseSelected) {
		t.Fatalf("err = %v, want ErrNoCourseSelected", err)
	}
	_, _ = f.m.SelectCourse(ctx, 4, "online_cardio")
	if _, err := f.m.RequestCoupon(ctx, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := f.m.ApplyCoupon(ctx, 4, "WINTER"); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if w := f.m.Sessions.Get(ctx, 4).Waiting; w.Kind != session.WaitCouponCode {
		t.Fatalf("waiting = %+v, want coupon", w)
	}
	q, err := f.m.ApplyCoupon(ctx, 4, "spring")
	if err != nil || q.Final != 750_000 {
		t.Fatalf("quote = %+v, %v", q, err)
	}
	out, err := f.m.SubmitReceipt(ctx, 4, "file")
	if err != nil {
		t.Fatal(err)
	}
	if out.Record.Amount != 750_000 || out.Record.OriginalAmount != 1_000_000 || out.Record.Coupon != "SPRING" {
		t.Fatalf("record = %+v", out.Record)
	}
	if f.m.Sessions.Get(ctx, 4).PendingCoupon != "" {
		t.Fatalf("coupon not consumed")
	}
}

func TestStatusNeverFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.submit(t, 5, "online_cardio"); err != nil {
		t.Fatal(err)
	}
	rec, _ := f.m.Ledger.LatestPending(ctx, 5)
	_, _ = f.m.Ledger.Resolve(ctx, 5, rec.ID, payment.ActionApprove, adminID)

	f.m.Catalog = nil
	if got := f.m.Status(ctx, 5); got != StateReturningNoCourse {
		t.Fatalf("status with broken catalog = %s", got)
	}

	broken := New(Deps{
		Sessions: session.NewStore(failingStore{}, nil),
		Ledger:   payment.NewLedger(failingStore{}),
		Stepper:  questionnaire.NewStepper(failingStore{}, nil),
	})
	if got := broken.Status(ctx, 5); got != StateReturningNoCourse {
		t.Fatalf("status with failing store = %s", got)
	}
}

type failingStore struct{}

var errDisk = errors.New("disk on fire")

func (failingStore) Get(context.Context, string, string) ([]byte, error) { return nil, errDisk }
func (failingStore) Update(context.Context, string, string, func([]byte) ([]byte, error)) error {
	return errDisk
}
func (failingStore) Scan(context.Context, string, func(string, []byte) error) error { return errDisk }
func (failingStore) Delete(context.Context, string, string) error                   { return errDisk }
func (failingStore) Close() error                                                   { return nil }

var _ storage.Store = failingStore{}

func TestSecondCourseAfterQuestionnaire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.m.Stepper = questionnaire.NewStepper(f.docs, shortBank(t))

	first, _ := f.submit(t, 6, "online_cardio")
	_, _ = f.m.Ledger.Resolve(ctx, 6, first.Record.ID, payment.ActionApprove, adminID)
	if got := f.m.Status(ctx, 6); got != StateNeedsQuestionnaire {
		t.Fatalf("status = %s", got)
	}
	if _, _, err := f.m.StartQuestionnaire(ctx, 6); err != nil {
		t.Fatal(err)
	}
	out, err := f.m.Answer(ctx, 6, questionnaire.Input{Text: "Sara"})
	if err != nil || !out.Completed {
		t.Fatalf("answer = %+v, %v", out, err)
	}
	if f.sender.count(adminID) < 2 {
		t.Fatalf("questionnaire summary not sent to admins")
	}
	if w := f.m.Sessions.Get(ctx, 6).Waiting; !w.Idle() {
		t.Fatalf("waiting after completion = %+v", w)
	}

	second, _ := f.submit(t, 6, "online_weights")
	_, _ = f.m.Ledger.Resolve(ctx, 6, second.Record.ID, payment.ActionApprove, adminID)
	if got := f.m.Status(ctx, 6); got != StateHasProgram {
		t.Fatalf("status after second course = %s, want %s", got, StateHasProgram)
	}
}

func shortBank(t *testing.T) *questionnaire.Bank {
	t.Helper()
	b, err := questionnaire.ParseBank([]byte("questions: [{step: 1, kind: text, title: Name, name: true}]"))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestEditThatOpensStepsResumesQuestionnaire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bank, err := questionnaire.ParseBank([]byte(`questions:
  - {step: 1, kind: choice, title: Trained, choices: [yes, no]}
  - {step: 2, kind: text, title: Details, condition: {step: 1, answer: "yes"}}
  - {step: 3, kind: text, title: Name, name: true}
`))
	if err != nil {
		t.Fatal(err)
	}
	f.m.Stepper = questionnaire.NewStepper(f.docs, bank)

	rec, _ := f.submit(t, 8, "online_cardio")
	_, _ = f.m.Ledger.Resolve(ctx, 8, rec.Record.ID, payment.ActionApprove, adminID)
	if _, _, err := f.m.StartQuestionnaire(ctx, 8); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"no", "Sara"} {
		if _, err := f.m.Answer(ctx, 8, questionnaire.Input{Text: text}); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.m.Status(ctx, 8); got != StateHasProgram {
		t.Fatalf("status = %s", got)
	}
	sent := f.sender.count(adminID)

	if _, err := f.m.StartEdit(ctx, 8, 1); err != nil {
		t.Fatal(err)
	}
	out, err := f.m.Answer(ctx, 8, questionnaire.Input{Text: "yes"})
	if err != nil || out.Completed || out.Question.Step != 2 || out.Progress.EditMode {
		t.Fatalf("edit = %+v, %v", out, err)
	}
	if w := f.m.Sessions.Get(ctx, 8).Waiting; w.Kind != session.WaitQuestionnaire || w.Step != 2 {
		t.Fatalf("waiting = %+v", w)
	}
	if got := f.m.Status(ctx, 8); got != StateNeedsQuestionnaire {
		t.Fatalf("status after reopening = %s", got)
	}

	out, err = f.m.Answer(ctx, 8, questionnaire.Input{Text: "three runs a week"})
	if err != nil || !out.Completed {
		t.Fatalf("answer = %+v, %v", out, err)
	}
	if f.sender.count(adminID) <= sent {
		t.Fatalf("updated summary not sent to admins")
	}
	if a, _ := out.Progress.Answer(3); a.Text != "Sara" {
		t.Fatalf("name answer = %q", a.Text)
	}
}

func TestQuestionnaireWaitingFollowsSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.m.Start(ctx, Profile{UserID: 7})
	q, resumed, err := f.m.StartQuestionnaire(ctx, 7)
	if err != nil || resumed || q.Step != 1 {
		t.Fatalf("start = %+v, %v, %v", q, resumed, err)
	}
	if w := f.m.Sessions.Get(ctx, 7).Waiting; w.Kind != session.WaitQuestionnaire || w.Step != 1 {
		t.Fatalf("waiting = %+v", w)
	}
	if _, err := f.m.Answer(ctx, 7, questionnaire.Input{Text: "Ali Rezaei"}); err != nil {
		t.Fatal(err)
	}
	if w := f.m.Sessions.Get(ctx, 7).Waiting; w.Step != 2 {
		t.Fatalf("waiting step = %d, want 2", w.Step)
	}

	_, _ = f.m.ReturnToHub(ctx, 7, "back_to_main")
	q, err = f.m.ResumeQuestionnaire(ctx, 7)
	if err != nil || q.Step != 2 {
		t.Fatalf("resume = %+v, %v", q, err)
	}
	if w := f.m.Sessions.Get(ctx, 7).Waiting; w.Step != 2 {
		t.Fatalf("waiting step after resume = %d", w.Step)
	}

	q, err = f.m.StartEdit(ctx, 7, 1)
	if err != nil || q.Step != 1 {
		t.Fatalf("start edit = %+v, %v", q, err)
	}
	if _, err := f.m.Answer(ctx, 7, questionnaire.Input{Text: "Ali Karimi"}); err != nil {
		t.Fatal(err)
	}
	p, err := f.m.FinishEdit(ctx, 7)
	if err != nil || p.CurrentStep != 2 {
		t.Fatalf("finish edit = %+v, %v", p, err)
	}
	if a, _ := p.Answer(1); a.Text != "Ali Karimi" {
		t.Fatalf("edited answer = %q", a.Text)
	}

	q, err = f.m.RestartQuestionnaire(ctx, 7)
	if err != nil || q.Step != 1 {
		t.Fatalf("restart = %+v, %v", q, err)
	}
}

func TestPlanUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.m.ReceivePlanFile(ctx, adminID, "doc", PlanDocument); !fault.Is(err, fault.KindState) {
		t.Fatalf("file outside upload err = %v", err)
	}
	if err := f.m.BeginPlanUpload(ctx, adminID, 8, "online_cardio"); err != nil {
		t.Fatal(err)
	}
	w, err := f.m.ReceivePlanFile(ctx, adminID, "doc", PlanDocument)
	if err != nil || w.Stage != session.StageDescription {
		t.Fatalf("file = %+v, %v", w, err)
	}
	if _, err := f.m.ReceivePlanDescription(ctx, adminID, "   "); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("empty description err = %v", err)
	}
	plan, err := f.m.ReceivePlanDescription(ctx, adminID, "Week 1")
	if err != nil {
		t.Fatal(err)
	}
	if plan.UserID != 8 || plan.FileID != "doc" || plan.UploadedBy != adminID {
		t.Fatalf("plan = %+v", plan)
	}
	if f.sender.count(8) != 1 {
		t.Fatalf("plan not delivered")
	}
	plans, _ := f.m.Plans(ctx, 8)
	if len(plans) != 1 {
		t.Fatalf("plans = %+v", plans)
	}
	if w := f.m.Sessions.Get(ctx, adminID).Waiting; !w.Idle() {
		t.Fatalf("admin still waiting: %+v", w)
	}
}
