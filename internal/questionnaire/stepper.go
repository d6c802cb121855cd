// Package questionnaire runs the personalization questionnaire every approved
// user answers once.
package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/storage"
)

const component = "service.questionnaire"

var (
	// ErrNotStarted means the user has no questionnaire progress.
	ErrNotStarted = errors.New("questionnaire: not started")
	// ErrCompleted means ordinary answers are no longer accepted.
	ErrCompleted = errors.New("questionnaire: already completed")
	// ErrNotInEditMode is returned by edit operations outside edit mode.
	ErrNotInEditMode = errors.New("questionnaire: not in edit mode")
	// ErrEditing is returned by ordinary operations while edit mode is on.
	ErrEditing = errors.New("questionnaire: edit mode active")
)

// Outcome reports the state after an answer was recorded.
type Outcome struct {
	Progress  *Progress
	Question  Question
	Completed bool
	// Advanced is false while a photo step is still collecting images.
	Advanced bool
	// Collected and Remaining describe the media gathered for a photo step.
	Collected int
	Remaining int
}

// Stepper moves a user through the question bank.
type Stepper struct {
	docs storage.Store
	bank *Bank
	now  func() time.Time
}

// NewStepper returns a Stepper that keeps progress in docs.
func NewStepper(docs storage.Store, bank *Bank) *Stepper {
	if bank == nil {
		bank = DefaultBank()
	}
	return &Stepper{docs: docs, bank: bank, now: time.Now}
}

// Bank returns the question bank in use.
func (s *Stepper) Bank() *Bank { return s.bank }

func key(userID int64) string { return strconv.FormatInt(userID, 10) }

// Progress returns the stored progress, or nil when the user never started.
func (s *Stepper) Progress(ctx context.Context, userID int64) (*Progress, error) {
	p, err := storage.GetJSON[Progress](ctx, s.docs, storage.Questionnaires, key(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return &p, nil
}

// update applies fn to existing progress; ErrNotStarted when there is none.
func (s *Stepper) update(ctx context.Context, userID int64, fn func(p *Progress) error) (*Progress, error) {
	var out Progress
	err := storage.UpdateJSON(ctx, s.docs, storage.Questionnaires, key(userID), func(p *Progress, exists bool) error {
		if !exists {
			return ErrNotStarted
		}
		if err := fn(p); err != nil {
			return err
		}
		p.LastUpdated = s.now().UTC()
		out = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Start creates progress at the first eligible step. Existing progress is
// returned unchanged with resumed set.
func (s *Stepper) Start(ctx context.Context, userID int64) (p *Progress, resumed bool, err error) {
	var out Progress
	err = storage.UpdateJSON(ctx, s.docs, storage.Questionnaires, key(userID), func(cur *Progress, exists bool) error {
		if exists {
			resumed = true
			out = *cur
			return storage.ErrNoChange
		}
		first, ok := s.bank.next(0, nil)
		if !ok {
			return fmt.Errorf("questionnaire: empty bank")
		}
		now := s.now().UTC()
		*cur = Progress{
			UserID:      userID,
			CurrentStep: first,
			Answers:     map[string]Answer{},
			StartedAt:   now,
			LastUpdated: now,
		}
		out = *cur
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("start questionnaire: %w", err)
	}
	if !resumed {
		logger.Info(ctx, component, "questionnaire.start",
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.Int("step", out.CurrentStep),
		)
	}
	return &out, resumed, nil
}

// Current returns the question the user should answer now, honoring edit mode.
func (s *Stepper) Current(ctx context.Context, userID int64) (Question, *Progress, error) {
	p, err := s.Progress(ctx, userID)
	if err != nil {
		return Question{}, nil, err
	}
	if p == nil {
		return Question{}, nil, ErrNotStarted
	}
	if p.Completed && !p.EditMode {
		return Question{}, p, ErrCompleted
	}
	q, ok := s.bank.Question(p.FocusStep())
	if !ok {
		return Question{}, p, fmt.Errorf("questionnaire: unknown step %d", p.FocusStep())
	}
	return q, p, nil
}

// moveOn records completion or the next eligible unanswered step after
// p.CurrentStep.
func (s *Stepper) moveOn(p *Progress) {
	step := p.CurrentStep
	for {
		next, ok := s.bank.next(step, p.Answers)
		if !ok {
			break
		}
		if _, answered := p.Answers[stepKey(next)]; !answered {
			p.CurrentStep = next
			return
		}
		step = next
	}
	p.Completed = true
	p.CompletedAt = s.now().UTC()
}

// firstUnanswered returns the first eligible step without an answer.
func (s *Stepper) firstUnanswered(p *Progress) (int, bool) {
	for _, q := range s.bank.questions {
		if _, ok := p.Answers[stepKey(q.Step)]; !ok && s.bank.Eligible(q.Step, p.Answers) {
			return q.Step, true
		}
	}
	return 0, false
}

func (s *Stepper) outcome(p *Progress, advanced bool) Outcome {
	o := Outcome{Progress: p, Completed: p.Completed, Advanced: advanced}
	if !p.Completed {
		o.Question, _ = s.bank.Question(p.CurrentStep)
	}
	return o
}

// ordinary checks that p accepts ordinary answers and returns the current question.
func (s *Stepper) ordinary(p *Progress) (Question, error) {
	if p.Completed {
		return Question{}, ErrCompleted
	}
	if p.EditMode {
		return Question{}, ErrEditing
	}
	q, ok := s.bank.Question(p.CurrentStep)
	if !ok {
		return Question{}, fmt.Errorf("questionnaire: unknown step %d", p.CurrentStep)
	}
	return q, nil
}

func checkInput(q Question, in Input) (Answer, error) {
	if in.Document != nil {
		if !q.AcceptsDocument() {
			return Answer{}, fault.Validation("questionnaire.document_unexpected", "📝 لطفاً پاسخ را به صورت متن بنویسید.")
		}
		return Answer{Document: in.Document}, nil
	}
	if err := q.Validate(in.Text); err != nil {
		return Answer{}, err
	}
	return Answer{Text: in.Text}, nil
}

// Advance validates in against the current step, records it and moves to the
// next eligible step. Invalid input leaves progress untouched.
func (s *Stepper) Advance(ctx context.Context, userID int64, in Input) (Outcome, error) {
	var step int
	p, err := s.update(ctx, userID, func(p *Progress) error {
		q, err := s.ordinary(p)
		if err != nil {
			return err
		}
		ans, err := checkInput(q, in)
		if err != nil {
			return err
		}
		step = p.CurrentStep
		p.set(step, ans)
		s.moveOn(p)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	s.logAdvance(ctx, userID, step, p)
	return s.outcome(p, true), nil
}

func (s *Stepper) logAdvance(ctx context.Context, userID int64, step int, p *Progress) {
	event := "questionnaire.advance"
	if p.Completed {
		event = "questionnaire.complete"
	}
	logger.Info(ctx, component, event,
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.Int("step", step),
		slog.Int("count", len(p.Answers)),
	)
}

// AddMedia collects an image for the current photo step. The step advances
// automatically once its maximum is reached.
func (s *Stepper) AddMedia(ctx context.Context, userID int64, ref MediaRef) (Outcome, error) {
	var collected, remaining, step int
	var advanced bool
	p, err := s.update(ctx, userID, func(p *Progress) error {
		q, err := s.ordinary(p)
		if err != nil {
			return err
		}
		if !q.AcceptsPhoto() {
			return fault.Validation("questionnaire.photo_unexpected", "در حال حاضر عکس مورد نیاز نیست.")
		}
		step = p.CurrentStep
		ans, _ := p.Answer(step)
		ans.Media = append(ans.Media, ref)
		p.set(step, ans)
		collected = len(ans.Media)
		remaining = q.MaxItems - collected
		if collected >= q.MaxItems {
			advanced = true
			s.moveOn(p)
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if advanced {
		s.logAdvance(ctx, userID, step, p)
	}
	o := s.outcome(p, advanced)
	o.Collected = collected
	o.Remaining = max(remaining, 0)
	return o, nil
}

// Continue ends a photo step early once its minimum is met.
func (s *Stepper) Continue(ctx context.Context, userID int64) (Outcome, error) {
	var step int
	p, err := s.update(ctx, userID, func(p *Progress) error {
		q, err := s.ordinary(p)
		if err != nil {
			return err
		}
		if !q.AcceptsPhoto() {
			return fault.Validation("questionnaire.continue_unexpected", "این سوال نیاز به عکس ندارد.")
		}
		ans, _ := p.Answer(p.CurrentStep)
		if len(ans.Media) < q.MinItems {
			return fault.Validation("questionnaire.need_more_photos",
				fmt.Sprintf("📸 حداقل %d عکس لازم است.", q.MinItems))
		}
		step = p.CurrentStep
		s.moveOn(p)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	s.logAdvance(ctx, userID, step, p)
	return s.outcome(p, true), nil
}

// StartEdit enters edit mode at step; step 0 selects the first answered step.
func (s *Stepper) StartEdit(ctx context.Context, userID int64, step int) (*Progress, error) {
	return s.update(ctx, userID, func(p *Progress) error {
		if len(p.Answers) == 0 {
			return fault.State("questionnaire.nothing_to_edit", ErrNotStarted)
		}
		if step == 0 {
			first, ok := s.firstAnswered(p)
			if !ok {
				return fault.State("questionnaire.nothing_to_edit", ErrNotStarted)
			}
			step = first
		}
		if !s.editable(p, step) {
			return fault.Validation("questionnaire.bad_edit_step", "این سوال قابل ویرایش نیست.")
		}
		p.EditMode = true
		p.EditStep = step
		p.EditFresh = true
		return nil
	})
}

func (s *Stepper) firstAnswered(p *Progress) (int, bool) {
	for _, q := range s.bank.questions {
		if _, ok := p.Answers[stepKey(q.Step)]; ok && s.bank.Eligible(q.Step, p.Answers) {
			return q.Step, true
		}
	}
	return 0, false
}

// editable reports whether step is eligible and already answered.
func (s *Stepper) editable(p *Progress, step int) bool {
	_, answered := p.Answers[stepKey(step)]
	return answered && s.bank.Eligible(step, p.Answers)
}

// Navigate moves the edit cursor to the previous (dir < 0) or next answered
// step. The cursor stays put at either end.
func (s *Stepper) Navigate(ctx context.Context, userID int64, dir int) (*Progress, error) {
	return s.update(ctx, userID, func(p *Progress) error {
		if !p.EditMode {
			return ErrNotInEditMode
		}
		step := p.EditStep
		for {
			var next int
			var ok bool
			if dir < 0 {
				next, ok = s.bank.prev(step, p.Answers)
			} else {
				next, ok = s.bank.next(step, p.Answers)
			}
			if !ok {
				return nil
			}
			if s.editable(p, next) {
				p.EditStep = next
				p.EditFresh = true
				return nil
			}
			step = next
		}
	})
}

// UpdateAnswer replaces the answer of the edit step after the same validation
// Advance applies. Answers of steps whose condition no longer holds are dropped.
// When the new answer makes unanswered steps eligible, edit mode ends and the
// questionnaire resumes at the first of them.
func (s *Stepper) UpdateAnswer(ctx context.Context, userID int64, in Input) (*Progress, error) {
	var step int
	var reopened bool
	p, err := s.update(ctx, userID, func(p *Progress) error {
		if !p.EditMode {
			return ErrNotInEditMode
		}
		q, ok := s.bank.Question(p.EditStep)
		if !ok {
			return fmt.Errorf("questionnaire: unknown step %d", p.EditStep)
		}
		ans, err := checkInput(q, in)
		if err != nil {
			return err
		}
		step = p.EditStep
		p.set(step, ans)
		reopened = s.prune(p)
		if reopened {
			p.EditMode = false
			p.EditStep = 0
			p.EditFresh = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	status := "ok"
	if reopened {
		status = "reopened"
	}
	logger.Info(ctx, component, "questionnaire.edit",
		slog.String("status", status),
		slog.Int64("user_id", userID),
		slog.Int("step", step),
	)
	return p, nil
}

// UpdateMedia records an image for the photo step being edited. The first
// image after entering the step replaces the old set.
func (s *Stepper) UpdateMedia(ctx context.Context, userID int64, ref MediaRef) (Outcome, error) {
	var collected, remaining int
	p, err := s.update(ctx, userID, func(p *Progress) error {
		if !p.EditMode {
			return ErrNotInEditMode
		}
		q, ok := s.bank.Question(p.EditStep)
		if !ok || !q.AcceptsPhoto() {
			return fault.Validation("questionnaire.photo_unexpected", "در حال حاضر عکس مورد نیاز نیست.")
		}
		ans, _ := p.Answer(p.EditStep)
		if p.EditFresh {
			ans = Answer{}
			p.EditFresh = false
		}
		if len(ans.Media) >= q.MaxItems {
			return fault.Validation("questionnaire.too_many_photos",
				fmt.Sprintf("حداکثر %d عکس مجاز است.", q.MaxItems))
		}
		ans.Media = append(ans.Media, ref)
		p.set(p.EditStep, ans)
		collected = len(ans.Media)
		remaining = q.MaxItems - collected
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Progress: p, Completed: p.Completed, Collected: collected, Remaining: remaining}, nil
}

// prune drops answers to steps whose condition no longer holds and moves the
// current step onto the first eligible step still missing an answer. A
// completed questionnaire with such a step is reopened; prune reports that.
func (s *Stepper) prune(p *Progress) bool {
	for _, q := range s.bank.questions {
		if q.Cond != nil && !s.bank.Eligible(q.Step, p.Answers) {
			delete(p.Answers, stepKey(q.Step))
		}
	}
	gap, ok := s.firstUnanswered(p)
	switch {
	case p.Completed && ok:
		p.Completed = false
		p.CompletedAt = time.Time{}
		p.CurrentStep = gap
		return true
	case p.Completed:
	case ok && gap < p.CurrentStep:
		p.CurrentStep = gap
	case !s.bank.Eligible(p.CurrentStep, p.Answers):
		s.moveOn(p)
	}
	return false
}

// FinishEdit leaves edit mode.
func (s *Stepper) FinishEdit(ctx context.Context, userID int64) (*Progress, error) {
	return s.update(ctx, userID, func(p *Progress) error {
		if !p.EditMode {
			return ErrNotInEditMode
		}
		p.EditMode = false
		p.EditStep = 0
		p.EditFresh = false
		return nil
	})
}

// Reset deletes the user's progress so the questionnaire starts over.
func (s *Stepper) Reset(ctx context.Context, userID int64) error {
	if err := s.docs.Delete(ctx, storage.Questionnaires, key(userID)); err != nil {
		return fmt.Errorf("reset questionnaire: %w", err)
	}
	logger.Info(ctx, component, "questionnaire.reset",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
	)
	return nil
}
