package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
)

// syncWaiting points the session's waiting state at the step the user answers next.
func (m *Machine) syncWaiting(ctx context.Context, userID int64, p *questionnaire.Progress) error {
	w := session.Waiting{}
	switch {
	case p == nil:
	case p.EditMode:
		w = session.QuestionnaireStep(p.EditStep)
	case p.Active():
		w = session.QuestionnaireStep(p.CurrentStep)
	}
	_, err := m.Sessions.Merge(ctx, userID, session.Patch{Waiting: &w})
	return err
}

// StartQuestionnaire starts the questionnaire or resumes an unfinished one and
// returns the question to ask. A completed questionnaire yields
// questionnaire.ErrCompleted.
func (m *Machine) StartQuestionnaire(ctx context.Context, userID int64) (questionnaire.Question, bool, error) {
	p, resumed, err := m.Stepper.Start(ctx, userID)
	if err != nil {
		return questionnaire.Question{}, false, err
	}
	if p.Completed && !p.EditMode {
		return questionnaire.Question{}, resumed, questionnaire.ErrCompleted
	}
	if err := m.syncWaiting(ctx, userID, p); err != nil {
		return questionnaire.Question{}, resumed, err
	}
	q, _ := m.Stepper.Bank().Question(p.FocusStep())
	return q, resumed, nil
}

// ResumeQuestionnaire re-arms the waiting state for unfinished progress.
func (m *Machine) ResumeQuestionnaire(ctx context.Context, userID int64) (questionnaire.Question, error) {
	q, p, err := m.Stepper.Current(ctx, userID)
	if err != nil {
		return questionnaire.Question{}, err
	}
	if err := m.syncWaiting(ctx, userID, p); err != nil {
		return questionnaire.Question{}, err
	}
	return q, nil
}

// RestartQuestionnaire discards the answers and starts from the first step.
func (m *Machine) RestartQuestionnaire(ctx context.Context, userID int64) (questionnaire.Question, error) {
	if err := m.Stepper.Reset(ctx, userID); err != nil {
		return questionnaire.Question{}, err
	}
	q, _, err := m.StartQuestionnaire(ctx, userID)
	return q, err
}

// Answer records a text or document answer, in edit mode for the edited step.
func (m *Machine) Answer(ctx context.Context, userID int64, in questionnaire.Input) (questionnaire.Outcome, error) {
	p, err := m.Stepper.Progress(ctx, userID)
	if err != nil {
		return questionnaire.Outcome{}, err
	}
	if p != nil && p.EditMode {
		updated, err := m.Stepper.UpdateAnswer(ctx, userID, in)
		if err != nil {
			return questionnaire.Outcome{}, err
		}
		if updated.EditMode {
			return m.editOutcome(updated), nil
		}
		// The edit opened new steps; ask them like ordinary questions.
		q, _ := m.Stepper.Bank().Question(updated.CurrentStep)
		out := questionnaire.Outcome{Progress: updated, Question: q, Advanced: true}
		return out, m.afterAdvance(ctx, userID, out)
	}
	out, err := m.Stepper.Advance(ctx, userID, in)
	if err != nil {
		return out, err
	}
	return out, m.afterAdvance(ctx, userID, out)
}

// AddPhoto records an image for the current or edited photo step.
func (m *Machine) AddPhoto(ctx context.Context, userID int64, ref questionnaire.MediaRef) (questionnaire.Outcome, error) {
	p, err := m.Stepper.Progress(ctx, userID)
	if err != nil {
		return questionnaire.Outcome{}, err
	}
	if p != nil && p.EditMode {
		return m.Stepper.UpdateMedia(ctx, userID, ref)
	}
	out, err := m.Stepper.AddMedia(ctx, userID, ref)
	if err != nil || !out.Advanced {
		return out, err
	}
	return out, m.afterAdvance(ctx, userID, out)
}

// ContinuePhotos ends the current photo step once its minimum is met.
func (m *Machine) ContinuePhotos(ctx context.Context, userID int64) (questionnaire.Outcome, error) {
	out, err := m.Stepper.Continue(ctx, userID)
	if err != nil {
		return out, err
	}
	return out, m.afterAdvance(ctx, userID, out)
}

func (m *Machine) editOutcome(p *questionnaire.Progress) questionnaire.Outcome {
	q, _ := m.Stepper.Bank().Question(p.EditStep)
	return questionnaire.Outcome{Progress: p, Question: q, Completed: p.Completed}
}

// afterAdvance keeps the waiting state in step and reports completion to admins.
func (m *Machine) afterAdvance(ctx context.Context, userID int64, out questionnaire.Outcome) error {
	if err := m.syncWaiting(ctx, userID, out.Progress); err != nil {
		return err
	}
	if !out.Completed {
		return nil
	}
	if m.Notifier == nil || m.Presenter == nil {
		return nil
	}
	sess := m.Sessions.Get(ctx, userID)
	summary := m.Stepper.Bank().Summary(out.Progress)
	msgs := []notify.Message{m.Presenter.QuestionnaireForAdmins(sess, summary)}
	for _, id := range m.Stepper.Bank().MediaFiles(out.Progress) {
		msgs = append(msgs, notify.Message{PhotoID: id, Plain: true})
	}
	for _, msg := range msgs {
		if _, err := m.Notifier.Admins(ctx, msg); err != nil {
			logger.Warn(ctx, component, "workflow.questionnaire_notify",
				slog.String("status", "error"),
				slog.Int64("user_id", userID),
				logger.Err(err),
			)
			break
		}
	}
	return nil
}

// StartEdit enters edit mode at step (0 for the first answered step).
func (m *Machine) StartEdit(ctx context.Context, userID int64, step int) (questionnaire.Question, error) {
	p, err := m.Stepper.StartEdit(ctx, userID, step)
	if err != nil {
		return questionnaire.Question{}, err
	}
	if err := m.syncWaiting(ctx, userID, p); err != nil {
		return questionnaire.Question{}, err
	}
	q, _ := m.Stepper.Bank().Question(p.EditStep)
	return q, nil
}

// NavigateEdit moves the edit cursor by dir.
func (m *Machine) NavigateEdit(ctx context.Context, userID int64, dir int) (questionnaire.Question, error) {
	p, err := m.Stepper.Navigate(ctx, userID, dir)
	if err != nil {
		return questionnaire.Question{}, err
	}
	if err := m.syncWaiting(ctx, userID, p); err != nil {
		return questionnaire.Question{}, err
	}
	q, _ := m.Stepper.Bank().Question(p.EditStep)
	return q, nil
}

// FinishEdit leaves edit mode and returns the progress. Unfinished progress
// resumes at its current step.
func (m *Machine) FinishEdit(ctx context.Context, userID int64) (*questionnaire.Progress, error) {
	p, err := m.Stepper.FinishEdit(ctx, userID)
	if errors.Is(err, questionnaire.ErrNotInEditMode) {
		p, err = m.Stepper.Progress(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return p, m.syncWaiting(ctx, userID, p)
}
