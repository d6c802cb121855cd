package input

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
	"github.com/m3rciful/coachbot/internal/storage"
)

type captureSender struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (c *captureSender) Send(_ context.Context, _ int64, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

type fixture struct {
	r        *Router
	sessions *session.Store
	stepper  *questionnaire.Stepper
	sender   *captureSender
	docs     storage.Store
	calls    map[string]int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		sessions: session.NewStore(docs, nil),
		stepper:  questionnaire.NewStepper(docs, nil),
		sender:   &captureSender{},
		docs:     docs,
		calls:    map[string]int{},
	}
	f.r = NewRouter(f.sessions, f.stepper, f.sender)
	record := func(name string) Handler {
		return func(context.Context, Event, Expectation) error {
			f.calls[name]++
			return nil
		}
	}
	f.r.On(ExpectText, KindText, func(ctx context.Context, ev Event, _ Expectation) error {
		f.calls["answer"]++
		_, err := f.stepper.Advance(ctx, ev.UserID, questionnaire.Input{Text: ev.Text})
		return err
	})
	f.r.On(ExpectReceipt, KindPhoto, record("receipt"))
	f.r.On(ExpectPlanFile, KindDocument, record("plan_file"))
	f.r.Always(KindCommand, record("command"))
	return f
}

// toStep answers the default questionnaire up to step.
func (f *fixture) toStep(t *testing.T, uid int64, step int) {
	t.Helper()
	ctx := context.Background()
	answers := []string{"سارا احمدی", "24", "170", "60", "لیگ برتر"}
	if _, _, err := f.stepper.Start(ctx, uid); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < step-1; i++ {
		if _, err := f.stepper.Advance(ctx, uid, questionnaire.Input{Text: answers[i]}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.sessions.Merge(ctx, uid, session.Patch{Waiting: session.Ptr(session.QuestionnaireStep(step))}); err != nil {
		t.Fatal(err)
	}
}

func TestPhotoWhileTextExpected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toStep(t, 1, 5)

	out, err := f.r.Handle(ctx, Event{UserID: 1, Kind: KindPhoto, Photo: &questionnaire.MediaRef{FileID: "p"}})
	if err != nil || out != Rejected {
		t.Fatalf("handle = %s, %v", out, err)
	}
	want := WrongInputMessage(Expectation{Expect: ExpectText, Step: 5})
	if len(f.sender.sent) != 1 || f.sender.sent[0].Text != want {
		t.Fatalf("sent = %+v", f.sender.sent)
	}
	p, _ := f.stepper.Progress(ctx, 1)
	if p.CurrentStep != 5 {
		t.Fatalf("current step = %d, want 5", p.CurrentStep)
	}
	if f.calls["answer"] != 0 {
		t.Fatal("answer handler ran")
	}

	out, _ = f.r.Handle(ctx, Event{UserID: 1, Kind: KindText, Text: "لیگ برتر"})
	if out != Handled {
		t.Fatalf("text outcome = %s", out)
	}
	if p, _ := f.stepper.Progress(ctx, 1); p.CurrentStep != 6 {
		t.Fatalf("current step = %d, want 6", p.CurrentStep)
	}
}

func TestIdleStickerIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.sessions.Merge(ctx, 2, session.Patch{StartedBot: session.Ptr(true)}); err != nil {
		t.Fatal(err)
	}
	before := f.sessions.Get(ctx, 2)

	out, err := f.r.Handle(ctx, Event{UserID: 2, Kind: KindOtherMedia, Media: "sticker"})
	if err != nil || out != Ignored {
		t.Fatalf("handle = %s, %v", out, err)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("sent = %+v", f.sender.sent)
	}
	after := f.sessions.Get(ctx, 2)
	if !after.LastUpdated.Equal(before.LastUpdated) {
		t.Fatal("session changed")
	}

	// A user who never wrote to the bot stays unknown.
	if out, _ := f.r.Handle(ctx, Event{UserID: 3, Kind: KindText, Text: "hi"}); out != Ignored {
		t.Fatalf("unknown user outcome = %s", out)
	}
	if _, err := f.docs.Get(ctx, storage.Sessions, "3"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("session persisted for idle user: %v", err)
	}
}

func TestCommandsAlwaysRouted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toStep(t, 1, 2)
	out, err := f.r.Handle(ctx, Event{UserID: 1, Kind: KindCommand, Text: "/start"})
	if err != nil || out != Handled || f.calls["command"] != 1 {
		t.Fatalf("handle = %s, %v, %v", out, err, f.calls)
	}
	if out, _ := f.r.Handle(ctx, Event{UserID: 9, Kind: KindCommand, Text: "/status"}); out != Handled {
		t.Fatalf("idle command outcome = %s", out)
	}
}

func TestSelfHealQuestionnaireFlag(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toStep(t, 1, 3)
	if _, err := f.sessions.Merge(ctx, 1, session.Patch{Waiting: &session.Waiting{}}); err != nil {
		t.Fatal(err)
	}

	exp, err := f.r.Expectation(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Expect != ExpectText || exp.Step != 3 || !exp.Healed {
		t.Fatalf("expectation = %+v", exp)
	}
	if w := f.sessions.Get(ctx, 1).Waiting; w.Kind != session.WaitQuestionnaire || w.Step != 3 {
		t.Fatalf("waiting = %+v", w)
	}
}

func TestHubLeavesQuestionnaireIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toStep(t, 1, 3)
	if _, err := f.sessions.ClearTransient(ctx, 1, "back_to_main"); err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.MarkReturnedToHub(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if out, _ := f.r.Handle(ctx, Event{UserID: 1, Kind: KindText, Text: "24"}); out != Ignored {
		t.Fatalf("outcome = %s, want ignored", out)
	}
}

func TestStaleQuestionnaireFlagCleared(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.sessions.Merge(ctx, 4, session.Patch{Waiting: session.Ptr(session.QuestionnaireStep(7))}); err != nil {
		t.Fatal(err)
	}
	exp, err := f.r.Expectation(ctx, 4)
	if err != nil || exp.Expect != ExpectNone {
		t.Fatalf("expectation = %+v, %v", exp, err)
	}
	if w := f.sessions.Get(ctx, 4).Waiting; !w.Idle() {
		t.Fatalf("stale flag kept: %+v", w)
	}
}

func TestExpectationPriority(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toStep(t, 1, 2)

	_, _ = f.sessions.Merge(ctx, 1, session.Patch{Waiting: session.Ptr(session.ReceiptPhoto("online_cardio"))})
	if out, _ := f.r.Handle(ctx, Event{UserID: 1, Kind: KindPhoto}); out != Handled || f.calls["receipt"] != 1 {
		t.Fatalf("receipt outcome = %s", out)
	}

	_, _ = f.sessions.Merge(ctx, 1, session.Patch{Waiting: session.Ptr(session.AdminUpload(session.StagePlanFile, 7, "online_cardio"))})
	if out, _ := f.r.Handle(ctx, Event{UserID: 1, Kind: KindText, Text: "24"}); out != Rejected {
		t.Fatalf("text during upload = %s", out)
	}
	if out, _ := f.r.Handle(ctx, Event{UserID: 1, Kind: KindDocument}); out != Handled || f.calls["plan_file"] != 1 {
		t.Fatalf("document during upload = %s", out)
	}
}

func TestExpectAccepts(t *testing.T) {
	cases := []struct {
		expect Expect
		kind   Kind
		want   bool
	}{
		{ExpectPlanFile, KindPhoto, true},
		{ExpectPlanFile, KindText, false},
		{ExpectReceipt, KindDocument, false},
		{ExpectTextOrDocument, KindDocument, true},
		{ExpectTextOrDocument, KindPhoto, false},
		{ExpectPhoto, KindOtherMedia, false},
		{ExpectNone, KindText, false},
	}
	for _, tc := range cases {
		if got := tc.expect.Accepts(tc.kind); got != tc.want {
			t.Errorf("%s accepts %s = %v, want %v", tc.expect, tc.kind, got, tc.want)
		}
	}
}
