package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/coachbot/core/logger"
	tghelpers "github.com/m3rciful/coachbot/core/telegram/helpers"
	"github.com/m3rciful/coachbot/core/telegram/router"
	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/input"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

// routeInputs binds each expectation and input kind to its handler.
func (b *Bot) routeInputs() {
	r := b.router
	r.Always(input.KindCommand, b.onUnknownCommand)

	r.On(input.ExpectCoupon, input.KindText, b.onCouponCode)
	r.On(input.ExpectReceipt, input.KindPhoto, b.onReceipt)

	r.On(input.ExpectText, input.KindText, b.onAnswer)
	r.On(input.ExpectTextOrDocument, input.KindText, b.onAnswer)
	r.On(input.ExpectTextOrDocument, input.KindDocument, b.onAnswer)
	r.On(input.ExpectPhoto, input.KindPhoto, b.onAnswerPhoto)

	r.On(input.ExpectPlanFile, input.KindDocument, b.onPlanFile)
	r.On(input.ExpectPlanFile, input.KindPhoto, b.onPlanFile)
	r.On(input.ExpectPlanDescription, input.KindText, b.onPlanDescription)
}

// OnMessage converts a plain message into an input event and routes it.
func (b *Bot) OnMessage(c tele.Context, kind router.MessageKind) error {
	user := c.Sender()
	msg := c.Message()
	if user == nil || msg == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	ev := eventOf(user.ID, kind, msg)
	out, err := b.router.Handle(ctx, ev)
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, component, "bot.input",
			slog.String("status", out.String()),
			slog.Int64("user_id", user.ID),
			slog.String("input", ev.Kind.String()),
		)
	}
	return b.report(ctx, user.ID, err)
}

func eventOf(userID int64, kind router.MessageKind, msg *tele.Message) input.Event {
	ev := input.Event{UserID: userID}
	switch kind {
	case router.KindText:
		ev.Kind = input.KindText
		ev.Text = msg.Text
		if strings.HasPrefix(msg.Text, "/") {
			ev.Kind = input.KindCommand
		}
	case router.KindPhoto:
		ev.Kind = input.KindPhoto
		ev.Photo = mediaRef(msg.Photo)
	case router.KindDocument:
		ev.Kind = input.KindDocument
		ev.Document = documentRef(msg.Document)
	default:
		ev.Kind = input.KindOtherMedia
		ev.Media = otherMediaName(msg)
	}
	return ev
}

func otherMediaName(msg *tele.Message) string {
	switch {
	case msg.Sticker != nil:
		return "sticker"
	case msg.Voice != nil:
		return "voice"
	case msg.Video != nil:
		return "video"
	case msg.VideoNote != nil:
		return "video_note"
	case msg.Animation != nil:
		return "animation"
	case msg.Audio != nil:
		return "audio"
	case msg.Location != nil:
		return "location"
	case msg.Contact != nil:
		return "contact"
	default:
		return "other"
	}
}

func (b *Bot) onUnknownCommand(ctx context.Context, ev input.Event, _ input.Expectation) error {
	return b.tellText(ctx, ev.UserID, txtUnknownCommand)
}

func (b *Bot) onCouponCode(ctx context.Context, ev input.Event, _ input.Expectation) error {
	q, err := b.machine.ApplyCoupon(ctx, ev.UserID, ev.Text)
	if err != nil {
		return err
	}
	if err := b.tellText(ctx, ev.UserID, txtCouponApplied); err != nil {
		return err
	}
	return b.tell(ctx, ev.UserID, b.view.PaymentInstructions(q))
}

func (b *Bot) onReceipt(ctx context.Context, ev input.Event, _ input.Expectation) error {
	if ev.Photo == nil {
		return nil
	}
	r, err := b.machine.SubmitReceipt(ctx, ev.UserID, ev.Photo.FileID)
	if err != nil {
		return err
	}
	return b.tell(ctx, ev.UserID, b.view.ReceiptAccepted(r))
}

func (b *Bot) onAnswer(ctx context.Context, ev input.Event, _ input.Expectation) error {
	in := questionnaire.Input{Text: ev.Text, Document: ev.Document}
	out, err := b.machine.Answer(ctx, ev.UserID, in)
	if err != nil {
		return err
	}
	return b.afterAnswer(ctx, ev.UserID, out)
}

func (b *Bot) onAnswerPhoto(ctx context.Context, ev input.Event, _ input.Expectation) error {
	if ev.Photo == nil {
		return nil
	}
	out, err := b.machine.AddPhoto(ctx, ev.UserID, *ev.Photo)
	if err != nil {
		return err
	}
	return b.afterAnswer(ctx, ev.UserID, out)
}

func (b *Bot) onPlanFile(ctx context.Context, ev input.Event, _ input.Expectation) error {
	fileID, kind := "", workflow.PlanDocument
	switch {
	case ev.Document != nil:
		fileID = ev.Document.FileID
	case ev.Photo != nil:
		fileID, kind = ev.Photo.FileID, workflow.PlanPhoto
	default:
		return nil
	}
	if _, err := b.machine.ReceivePlanFile(ctx, ev.UserID, fileID, kind); err != nil {
		return err
	}
	return b.tellText(ctx, ev.UserID, txtPlanAskDesc)
}

func (b *Bot) onPlanDescription(ctx context.Context, ev input.Event, _ input.Expectation) error {
	_, err := b.machine.ReceivePlanDescription(ctx, ev.UserID, ev.Text)
	if fault.Is(err, fault.KindNotification) {
		return b.tellText(ctx, ev.UserID, txtPlanStored)
	}
	if err != nil {
		return err
	}
	return b.tellText(ctx, ev.UserID, txtPlanSent)
}
