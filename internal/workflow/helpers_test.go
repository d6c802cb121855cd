package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/m3rciful/coachbot/internal/catalog"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
	"github.com/m3rciful/coachbot/internal/storage"
)

type stubSender struct {
	mu   sync.Mutex
	sent map[int64][]notify.Message
}

func (s *stubSender) Send(_ context.Context, chatID int64, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = map[int64][]notify.Message{}
	}
	s.sent[chatID] = append(s.sent[chatID], msg)
	return nil
}

func (s *stubSender) count(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[chatID])
}

type stubAdmins []int64

func (a stubAdmins) AdminIDs() []int64 { return a }

type stubPresenter struct{}

func (stubPresenter) ReceiptForAdmins(rec payment.Record, _ *session.Session, remaining int) notify.Message {
	return notify.Message{Text: fmt.Sprintf("receipt %s %d left", rec.ID, remaining)}
}

func (stubPresenter) QuestionnaireForAdmins(_ *session.Session, summary string) notify.Message {
	return notify.Message{Text: summary}
}

func (stubPresenter) PlanForUser(p Plan) notify.Message {
	return notify.Message{Text: p.Description, DocumentID: p.FileID}
}

const adminID = 900

type fixture struct {
	m      *Machine
	sender *stubSender
	docs   storage.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	docs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.New(
		[]catalog.Course{
			{ID: "online_cardio", Price: 1_000_000, Questionnaire: true},
			{ID: "online_weights", Price: 2_000_000, Questionnaire: true},
			{ID: "in_person", Price: 3_000_000},
		},
		[]catalog.Coupon{{Code: "SPRING", Percent: 25, Active: true}},
	)
	if err != nil {
		t.Fatal(err)
	}
	ledger := payment.NewLedger(docs)
	sender := &stubSender{}
	m := New(Deps{
		Docs:      docs,
		Sessions:  session.NewStore(docs, ledger),
		Ledger:    ledger,
		Stepper:   questionnaire.NewStepper(docs, nil),
		Catalog:   cat,
		Notifier:  notify.New(sender, stubAdmins{adminID}, 0),
		Presenter: stubPresenter{},
	})
	return fixture{m: m, sender: sender, docs: docs}
}

// submit selects course, arms the receipt and submits one image.
func (f fixture) submit(t *testing.T, uid int64, course string) (Receipt, error) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.m.Start(ctx, Profile{UserID: uid}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.m.SelectCourse(ctx, uid, course); err != nil {
		t.Fatal(err)
	}
	if _, err := f.m.RequestReceipt(ctx, uid); err != nil {
		return Receipt{}, err
	}
	return f.m.SubmitReceipt(ctx, uid, "receipt-file")
}
