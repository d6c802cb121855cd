package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/core/telegram/callbacks"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) onCourse(ctx context.Context, _ tele.Context, userID int64, payload string) error {
	course, err := b.machine.SelectCourse(ctx, userID, payload)
	if err != nil {
		return err
	}
	return b.tell(ctx, userID, b.view.CourseCard(course))
}

// ensureCourse selects course when the button belongs to another card than
// the one the session points at.
func (b *Bot) ensureCourse(ctx context.Context, userID int64, course string) error {
	if course == "" || b.machine.Sessions.Get(ctx, userID).CourseSelected == course {
		return nil
	}
	_, err := b.machine.SelectCourse(ctx, userID, course)
	return err
}

func (b *Bot) onPay(ctx context.Context, _ tele.Context, userID int64, payload string) error {
	if err := b.ensureCourse(ctx, userID, payload); err != nil {
		return err
	}
	q, err := b.machine.RequestReceipt(ctx, userID)
	if err != nil {
		return err
	}
	return b.tell(ctx, userID, b.view.PaymentInstructions(q))
}

func (b *Bot) onCoupon(ctx context.Context, _ tele.Context, userID int64, payload string) error {
	if err := b.ensureCourse(ctx, userID, payload); err != nil {
		return err
	}
	if _, err := b.machine.RequestCoupon(ctx, userID); err != nil {
		return err
	}
	return b.tellText(ctx, userID, txtAskCoupon)
}

func (b *Bot) onHub(ctx context.Context, _ tele.Context, userID int64, _ string) error {
	if _, err := b.machine.ReturnToHub(ctx, userID, "hub_button"); err != nil {
		return err
	}
	return b.tell(ctx, userID, b.view.Hub(b.machine.Status(ctx, userID)))
}

// resolver handles the approve and reject buttons on a receipt.
func (b *Bot) resolver(action payment.Action) func(context.Context, tele.Context, int64, string) error {
	return func(ctx context.Context, _ tele.Context, adminID int64, payload string) error {
		target, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return err
		}
		res, err := b.coord.Run(ctx, target, action, adminID)
		if err != nil {
			return err
		}
		return b.tell(ctx, adminID, b.view.AdminResolved(res))
	}
}

func (b *Bot) onGrantButton(ctx context.Context, c tele.Context, adminID int64, payload string) error {
	target, course, err := callbacks.UserAndRest(payload)
	if err != nil {
		return err
	}
	return b.grant(ctx, c, adminID, target, course, 1)
}

func (b *Bot) onUploadButton(ctx context.Context, _ tele.Context, adminID int64, payload string) error {
	target, course, err := callbacks.UserAndRest(payload)
	if err != nil {
		return err
	}
	if err := b.machine.BeginPlanUpload(ctx, adminID, target, course); err != nil {
		return err
	}
	return b.tellText(ctx, adminID, txtPlanAskFile)
}

// questionnaireOpen reports whether the user's payment state lets them fill
// in or change the questionnaire.
func (b *Bot) questionnaireOpen(ctx context.Context, userID int64) bool {
	switch b.machine.Status(ctx, userID) {
	case workflow.StateNeedsQuestionnaire, workflow.StateHasProgram:
		return true
	}
	return false
}

// startQuestionnaire opens the questionnaire for users whose approved course
// needs it, or shows the edit menu once it is complete.
func (b *Bot) startQuestionnaire(ctx context.Context, userID int64) error {
	if !b.questionnaireOpen(ctx, userID) {
		return b.tellText(ctx, userID, txtNoQuestionnaire)
	}
	q, _, err := b.machine.StartQuestionnaire(ctx, userID)
	if errors.Is(err, questionnaire.ErrCompleted) {
		return b.tell(ctx, userID, b.view.EditMenu())
	}
	if err != nil {
		return err
	}
	p, _ := b.machine.Stepper.Progress(ctx, userID)
	return b.tell(ctx, userID, b.view.Question(q, p))
}

func (b *Bot) onQuestionnaireStart(ctx context.Context, _ tele.Context, userID int64, _ string) error {
	return b.startQuestionnaire(ctx, userID)
}

func (b *Bot) onQuestionnaireRestart(ctx context.Context, _ tele.Context, userID int64, _ string) error {
	if !b.questionnaireOpen(ctx, userID) {
		return b.tellText(ctx, userID, txtNoQuestionnaire)
	}
	q, err := b.machine.RestartQuestionnaire(ctx, userID)
	if err != nil {
		return err
	}
	return b.tell(ctx, userID, b.view.Question(q, nil))
}

func (b *Bot) editPrompt(ctx context.Context, userID int64, q questionnaire.Question) error {
	p, err := b.machine.Stepper.Progress(ctx, userID)
	if err != nil {
		return err
	}
	return b.tell(ctx, userID, b.view.Question(q, p))
}

func (b *Bot) onQuestionnaireEdit(ctx context.Context, _ tele.Context, userID int64, payload string) error {
	if !b.questionnaireOpen(ctx, userID) {
		return b.tellText(ctx, userID, txtNoQuestionnaire)
	}
	step, _ := strconv.Atoi(payload)
	q, err := b.machine.StartEdit(ctx, userID, step)
	if err != nil {
		return err
	}
	return b.editPrompt(ctx, userID, q)
}

func (b *Bot) onQuestionnaireNav(ctx context.Context, _ tele.Context, userID int64, payload string) error {
	dir, err := strconv.Atoi(payload)
	if err != nil {
		return err
	}
	q, err := b.machine.NavigateEdit(ctx, userID, dir)
	if err != nil {
		return err
	}
	return b.editPrompt(ctx, userID, q)
}

func (b *Bot) onQuestionnaireFinish(ctx context.Context, _ tele.Context, userID int64, _ string) error {
	p, err := b.machine.FinishEdit(ctx, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return b.tellText(ctx, userID, txtNoQuestionnaire)
	}
	if p.Completed {
		return b.tellText(ctx, userID, txtEditFinished)
	}
	q, ok := b.machine.Stepper.Bank().Question(p.CurrentStep)
	if !ok {
		return nil
	}
	return b.tell(ctx, userID, b.view.Question(q, p))
}

func (b *Bot) onPhotosDone(ctx context.Context, _ tele.Context, userID int64, _ string) error {
	out, err := b.machine.ContinuePhotos(ctx, userID)
	if err != nil {
		return err
	}
	return b.afterAnswer(ctx, userID, out)
}

// onChoice answers a choice question from its button. Buttons of an earlier
// step are ignored.
func (b *Bot) onChoice(ctx context.Context, _ tele.Context, userID int64, payload string) error {
	parts := callbacks.Parts(payload)
	if len(parts) != 2 {
		return nil
	}
	step, err1 := strconv.Atoi(parts[0])
	idx, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil
	}
	p, err := b.machine.Stepper.Progress(ctx, userID)
	if err != nil {
		return err
	}
	if p == nil || p.FocusStep() != step || (p.Completed && !p.EditMode) {
		logger.Info(ctx, component, "bot.choice",
			slog.String("status", "ignored"),
			slog.Int64("user_id", userID),
			slog.Int("step", step),
		)
		return nil
	}
	q, ok := b.machine.Stepper.Bank().Question(step)
	if !ok || idx < 0 || idx >= len(q.Choices) {
		return nil
	}
	out, err := b.machine.Answer(ctx, userID, questionnaire.Input{Text: q.Choices[idx]})
	if err != nil {
		return err
	}
	return b.afterAnswer(ctx, userID, out)
}

// afterAnswer sends what follows a recorded answer: the next question, the
// photo counter, the edit view or the completion message.
func (b *Bot) afterAnswer(ctx context.Context, userID int64, out questionnaire.Outcome) error {
	editing := out.Progress != nil && out.Progress.EditMode
	switch {
	case out.Collected > 0 && (editing || !out.Advanced):
		return b.tell(ctx, userID, b.view.PhotoCollected(out))
	case editing:
		if err := b.tellText(ctx, userID, txtEditSaved); err != nil {
			return err
		}
		return b.tell(ctx, userID, b.view.Question(out.Question, out.Progress))
	case out.Completed:
		return b.tell(ctx, userID, b.view.QuestionnaireDone())
	default:
		return b.tell(ctx, userID, b.view.Question(out.Question, out.Progress))
	}
}
