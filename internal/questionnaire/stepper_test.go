package questionnaire

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/storage"
)

func newStepper(t *testing.T) *Stepper {
	t.Helper()
	docs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewStepper(docs, nil)
}

// validAnswers holds a passing text answer for every text-like step.
var validAnswers = map[int]string{
	1:  "سارا احمدی",
	2:  "24",
	3:  "170",
	4:  "60",
	5:  "لیگ برتر",
	6:  "دو ساعت",
	7:  "لیگ دسته یک",
	8:  "تیم دارم",
	9:  "خیر",
	10: "سه جلسه دویدن",
	11: "دو جلسه وزنه",
	12: "توپ و کنز دارم",
	13: "سرعت",
	14: "ندارم",
	15: "خوب و منظم",
	16: "با تیم",
	17: "کمبود وقت کافی",
	19: "شکم",
	20: "تلگرام",
	21: "09121112233",
}

func answerThrough(t *testing.T, s *Stepper, uid int64, overrides map[int]string) Outcome {
	t.Helper()
	ctx := context.Background()
	var last Outcome
	for i := 0; i < 40; i++ {
		q, p, err := s.Current(ctx, uid)
		if errors.Is(err, ErrCompleted) {
			return last
		}
		if err != nil {
			t.Fatalf("current: %v", err)
		}
		prev := p.CurrentStep
		if q.Kind == KindPhoto {
			last, err = s.AddMedia(ctx, uid, MediaRef{FileID: "photo"})
			if err != nil {
				t.Fatalf("add media: %v", err)
			}
			last, err = s.Continue(ctx, uid)
		} else {
			text, ok := overrides[q.Step]
			if !ok {
				text = validAnswers[q.Step]
			}
			last, err = s.Advance(ctx, uid, Input{Text: text})
		}
		if err != nil {
			t.Fatalf("step %d: %v", q.Step, err)
		}
		if !last.Completed && last.Progress.CurrentStep <= prev {
			t.Fatalf("current step went from %d to %d", prev, last.Progress.CurrentStep)
		}
	}
	t.Fatalf("questionnaire did not complete")
	return last
}

func TestAdvanceSkipsConditionalSteps(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	if _, _, err := s.Start(ctx, 1); err != nil {
		t.Fatal(err)
	}
	out := answerThrough(t, s, 1, map[int]string{9: "خیر"})
	if !out.Completed || out.Progress.CompletedAt.IsZero() {
		t.Fatalf("not completed: %+v", out.Progress)
	}
	for _, step := range []int{10, 11} {
		if _, ok := out.Progress.Answer(step); ok {
			t.Fatalf("step %d answered despite unmet condition", step)
		}
	}
}

func TestAdvanceVisitsConditionalSteps(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 2)
	out := answerThrough(t, s, 2, map[int]string{9: "بله"})
	for _, step := range []int{10, 11} {
		if _, ok := out.Progress.Answer(step); !ok {
			t.Fatalf("step %d missing", step)
		}
	}
}

func TestAdvanceInvalidDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 3)
	_, err := s.Advance(ctx, 3, Input{Text: "12345"})
	if !fault.Is(err, fault.KindValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	p, _ := s.Progress(ctx, 3)
	if p.CurrentStep != 1 || len(p.Answers) != 0 {
		t.Fatalf("progress mutated: %+v", p)
	}
}

func TestAnswerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 4)
	text := "مریم  کریمی ✨"
	if _, err := s.Advance(ctx, 4, Input{Text: text}); err != nil {
		t.Fatal(err)
	}
	p, _ := s.Progress(ctx, 4)
	a, ok := p.Answer(1)
	if !ok || a.Text != text {
		t.Fatalf("answer = %q, want %q", a.Text, text)
	}
}

func TestCompletedRejectsOrdinaryAdvance(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 5)
	answerThrough(t, s, 5, nil)
	before, _ := s.Progress(ctx, 5)

	if _, err := s.Advance(ctx, 5, Input{Text: "anything"}); !errors.Is(err, ErrCompleted) {
		t.Fatalf("err = %v, want ErrCompleted", err)
	}
	if _, err := s.AddMedia(ctx, 5, MediaRef{FileID: "x"}); !errors.Is(err, ErrCompleted) {
		t.Fatalf("add media err = %v", err)
	}
	after, _ := s.Progress(ctx, 5)
	if len(after.Answers) != len(before.Answers) {
		t.Fatalf("answers changed after completion")
	}
	p, resumed, err := s.Start(ctx, 5)
	if err != nil || !resumed || !p.Completed {
		t.Fatalf("start after completion = %+v, %v, %v", p, resumed, err)
	}
}

func TestPhotoStepCollection(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 6)
	for i := 0; i < 40; i++ {
		q, _, _ := s.Current(ctx, 6)
		if q.Kind == KindPhoto {
			break
		}
		if _, err := s.Advance(ctx, 6, Input{Text: validAnswers[q.Step]}); err != nil {
			t.Fatalf("step %d: %v", q.Step, err)
		}
	}
	if _, err := s.Continue(ctx, 6); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("continue without photos err = %v", err)
	}
	if _, err := s.Advance(ctx, 6, Input{Text: "text"}); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("text on photo step err = %v", err)
	}
	out, err := s.AddMedia(ctx, 6, MediaRef{FileID: "a"})
	if err != nil || out.Advanced || out.Collected != 1 || out.Remaining != 2 {
		t.Fatalf("first photo = %+v, %v", out, err)
	}
	_, _ = s.AddMedia(ctx, 6, MediaRef{FileID: "b"})
	out, err = s.AddMedia(ctx, 6, MediaRef{FileID: "c"})
	if err != nil || !out.Advanced || out.Progress.CurrentStep != 19 {
		t.Fatalf("third photo = %+v, %v", out, err)
	}
	a, _ := out.Progress.Answer(18)
	if len(a.Media) != 3 {
		t.Fatalf("media = %+v", a.Media)
	}
}

func TestDocumentAnswer(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 7)
	if _, err := s.Advance(ctx, 7, Input{Document: &DocumentRef{FileID: "f"}}); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("document on text step err = %v", err)
	}
	for step := 1; step <= 9; step++ {
		text := validAnswers[step]
		if step == 9 {
			text = "بله"
		}
		if _, err := s.Advance(ctx, 7, Input{Text: text}); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
	out, err := s.Advance(ctx, 7, Input{Document: &DocumentRef{FileID: "plan.pdf", FileName: "plan.pdf"}})
	if err != nil || out.Progress.CurrentStep != 11 {
		t.Fatalf("document answer = %+v, %v", out, err)
	}
}

func TestEditMode(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 8)
	answerThrough(t, s, 8, map[int]string{9: "بله"})

	if _, err := s.UpdateAnswer(ctx, 8, Input{Text: "x"}); !errors.Is(err, ErrNotInEditMode) {
		t.Fatalf("update outside edit err = %v", err)
	}
	if _, err := s.Navigate(ctx, 8, 1); !errors.Is(err, ErrNotInEditMode) {
		t.Fatalf("navigate outside edit err = %v", err)
	}

	p, err := s.StartEdit(ctx, 8, 0)
	if err != nil || p.EditStep != 1 {
		t.Fatalf("start edit = %+v, %v", p, err)
	}
	p, _ = s.Navigate(ctx, 8, -1)
	if p.EditStep != 1 {
		t.Fatalf("navigate before first moved to %d", p.EditStep)
	}
	p, _ = s.Navigate(ctx, 8, 1)
	if p.EditStep != 2 {
		t.Fatalf("navigate next = %d", p.EditStep)
	}
	if _, err := s.UpdateAnswer(ctx, 8, Input{Text: "99"}); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("invalid edit err = %v", err)
	}
	p, err = s.UpdateAnswer(ctx, 8, Input{Text: "30"})
	if err != nil {
		t.Fatal(err)
	}
	if a, _ := p.Answer(2); a.Text != "30" || !p.Completed || p.CurrentStep == 0 {
		t.Fatalf("after edit = %+v", p)
	}

	if _, err := s.StartEdit(ctx, 8, 9); err != nil {
		t.Fatal(err)
	}
	p, _ = s.UpdateAnswer(ctx, 8, Input{Text: "خیر"})
	if _, ok := p.Answer(10); ok {
		t.Fatalf("conditional answer kept after condition changed")
	}

	if _, err := s.StartEdit(ctx, 8, 18); err != nil {
		t.Fatal(err)
	}
	out, err := s.UpdateMedia(ctx, 8, MediaRef{FileID: "new"})
	if err != nil || out.Collected != 1 {
		t.Fatalf("update media = %+v, %v", out, err)
	}
	p, err = s.FinishEdit(ctx, 8)
	if err != nil || p.EditMode {
		t.Fatalf("finish edit = %+v, %v", p, err)
	}
	if a, _ := p.Answer(18); len(a.Media) != 1 || a.Media[0].FileID != "new" {
		t.Fatalf("media after edit = %+v", a)
	}
}

func TestEditOpeningConditionalStepsReopens(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 9)
	answerThrough(t, s, 9, map[int]string{9: "خیر"})

	if _, err := s.StartEdit(ctx, 9, 9); err != nil {
		t.Fatal(err)
	}
	p, err := s.UpdateAnswer(ctx, 9, Input{Text: "بله"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Completed || p.EditMode || p.CurrentStep != 10 || !p.CompletedAt.IsZero() {
		t.Fatalf("after opening steps = %+v", p)
	}
	if q, _, err := s.Current(ctx, 9); err != nil || q.Step != 10 {
		t.Fatalf("current = %d, %v", q.Step, err)
	}

	out, err := s.Advance(ctx, 9, Input{Text: validAnswers[10]})
	if err != nil || out.Completed || out.Progress.CurrentStep != 11 {
		t.Fatalf("step 10 = %+v, %v", out.Progress, err)
	}
	out, err = s.Advance(ctx, 9, Input{Text: validAnswers[11]})
	if err != nil || !out.Completed {
		t.Fatalf("step 11 = %+v, %v", out.Progress, err)
	}
	if a, _ := out.Progress.Answer(12); a.Text != validAnswers[12] {
		t.Fatalf("later answer changed: %+v", a)
	}
}

func TestResetStartsOver(t *testing.T) {
	ctx := context.Background()
	s := newStepper(t)
	_, _, _ = s.Start(ctx, 9)
	_, _ = s.Advance(ctx, 9, Input{Text: validAnswers[1]})
	if err := s.Reset(ctx, 9); err != nil {
		t.Fatal(err)
	}
	p, resumed, err := s.Start(ctx, 9)
	if err != nil || resumed || p.CurrentStep != 1 || len(p.Answers) != 0 {
		t.Fatalf("restart = %+v, %v, %v", p, resumed, err)
	}
}
