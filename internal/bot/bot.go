// Package bot adapts the funnel to Telegram: commands, inline buttons,
// inbound media and the texts users and admins see.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/coachbot/core/logger"
	tg "github.com/m3rciful/coachbot/core/telegram"
	"github.com/m3rciful/coachbot/core/telegram/callbacks"
	"github.com/m3rciful/coachbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/coachbot/core/telegram/helpers"
	"github.com/m3rciful/coachbot/core/telegram/keyboard"
	"github.com/m3rciful/coachbot/internal/approval"
	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/input"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.bot"

// Bot holds the funnel services and renders their results to Telegram.
type Bot struct {
	machine  *workflow.Machine
	coord    *approval.Coordinator
	router   *input.Router
	notifier *notify.Notifier
	sender   notify.Sender
	admins   *Admins
	view     *Presenter
	now      func() time.Time
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Machine     *workflow.Machine
	Coordinator *approval.Coordinator
	Notifier    *notify.Notifier
	Sender      notify.Sender
	Admins      *Admins
	Presenter   *Presenter
}

// New builds a Bot and its input router.
func New(d Deps) *Bot {
	b := &Bot{
		machine:  d.Machine,
		coord:    d.Coordinator,
		notifier: d.Notifier,
		sender:   d.Sender,
		admins:   d.Admins,
		view:     d.Presenter,
		now:      time.Now,
	}
	b.router = input.NewRouter(d.Machine.Sessions, d.Machine.Stepper, d.Sender)
	b.routeInputs()
	return b
}

// Register adds the bot's commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start": {
			Handler:     b.onStart,
			Description: "شروع و منوی اصلی",
			Aliases:     []string{labelCourses},
		},
		"/status": {
			Handler:     b.onStatus,
			Description: "وضعیت من",
			Aliases:     []string{labelStatus},
		},
		"/questionnaire": {
			Handler:     b.onQuestionnaire,
			Description: "پرسشنامه",
			Aliases:     []string{labelQuestionnaire},
		},
		"/cancel": {
			Handler:     b.onCancel,
			Description: "لغو عملیات جاری",
			Aliases:     []string{labelCancel},
		},
		"/admin": {
			Handler:     b.onAdmin,
			Description: "پنل مدیریت",
			AdminOnly:   true,
			Hidden:      true,
			Aliases:     []string{labelAdmin},
		},
		"/pending": {Handler: b.onPending, Description: "پرداخت‌های در انتظار", AdminOnly: true, Hidden: true},
		"/grant":   {Handler: b.onGrant, Description: "فرصت اضافه ارسال فیش", AdminOnly: true, Hidden: true},
		"/upload":  {Handler: b.onUpload, Description: "ارسال برنامه", AdminOnly: true, Hidden: true},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}

	cbs := map[string]tele.HandlerFunc{
		cbCourse:   b.callback(b.onCourse),
		cbPay:      b.callback(b.onPay),
		cbCoupon:   b.callback(b.onCoupon),
		cbHub:      b.callback(b.onHub),
		cbApprove:  b.callback(b.resolver(payment.ActionApprove)),
		cbReject:   b.callback(b.resolver(payment.ActionReject)),
		cbGrant:    b.callback(b.onGrantButton),
		cbUpload:   b.callback(b.onUploadButton),
		cbQStart:   b.callback(b.onQuestionnaireStart),
		cbQRestart: b.callback(b.onQuestionnaireRestart),
		cbQEdit:    b.callback(b.onQuestionnaireEdit),
		cbQNav:     b.callback(b.onQuestionnaireNav),
		cbQFinish:  b.callback(b.onQuestionnaireFinish),
		cbQPhotos:  b.callback(b.onPhotosDone),
		cbQChoice:  b.callback(b.onChoice),
	}
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

// AdminCallbacks lists the callback keys limited to administrators.
func AdminCallbacks() []string { return append([]string(nil), adminCallbacks...) }

func (b *Bot) mainKeyboard(userID int64) *tele.ReplyMarkup {
	rows := [][]string{
		{labelCourses, labelStatus},
		{labelQuestionnaire, labelCancel},
	}
	if b.admins.IsAdmin(userID) {
		rows = append(rows, []string{labelAdmin})
	}
	return keyboard.ReplyButtons(rows...)
}

// reply answers in the update's chat. Media messages go through the sender.
func (b *Bot) reply(c tele.Context, msg notify.Message) error {
	if msg.PhotoID != "" || msg.DocumentID != "" {
		return b.sender.Send(tghelpers.BuildContext(c), c.Chat().ID, msg)
	}
	markup := inlineMarkup(msg.Buttons)
	if msg.Plain {
		return tghelpers.SendText(c, msg.Text, markup)
	}
	return tghelpers.SendMD(c, msg.Text, markup)
}

func (b *Bot) replyText(c tele.Context, text string) error {
	return b.reply(c, notify.Message{Text: text, Plain: true})
}

func (b *Bot) tell(ctx context.Context, userID int64, msg notify.Message) error {
	return b.sender.Send(ctx, userID, msg)
}

func (b *Bot) tellText(ctx context.Context, userID int64, text string) error {
	return b.tell(ctx, userID, notify.Message{Text: text, Plain: true})
}

// report turns err into a message for userID. Validation and known state
// errors get their corrective text; anything else gets a notice with a
// reference id, which is also sent to the admins. Unexpected errors are
// returned so the handler summary records them.
func (b *Bot) report(ctx context.Context, userID int64, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, workflow.ErrAttemptsExhausted):
		return b.tellText(ctx, userID, txtAttemptsOver)
	case errors.Is(err, approval.ErrConflict):
		return b.tellText(ctx, userID, txtConflict)
	case fault.Is(err, fault.KindValidation):
		return b.tellText(ctx, userID, fault.UserMessage(err))
	case fault.Is(err, fault.KindState):
		logger.Info(ctx, component, "bot.state_error",
			slog.String("status", "rejected"),
			slog.Int64("user_id", userID),
			logger.Err(err),
		)
		return b.tell(ctx, userID, b.view.Hub(b.machine.Status(ctx, userID)))
	}

	notice := fault.NewNotice(err, "برای ادامه /start را بزنید.", b.now())
	logger.Error(ctx, component, "bot.error",
		slog.String("status", "error"),
		slog.Int64("user_id", userID),
		slog.String("ref", notice.Ref),
		logger.Err(err),
	)
	if serr := b.tellText(ctx, userID, notice.ForUser()); serr != nil {
		err = errors.Join(err, serr)
	}
	if b.notifier != nil && !b.admins.IsAdmin(userID) {
		_, _ = b.notifier.Admins(ctx, notify.Message{Text: notice.ForAdmin(err, userID), Plain: true})
	}
	return fmt.Errorf("ref %s: %w", notice.Ref, err)
}

// callback adapts a button handler: it resolves the context and sender,
// answers the callback query and reports errors to the presser.
func (b *Bot) callback(fn func(ctx context.Context, c tele.Context, userID int64, payload string) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		err := fn(ctx, c, user.ID, callbacks.CallbackPayload(c))
		_ = c.Respond()
		return b.report(ctx, user.ID, err)
	}
}

// OnLimited answers updates dropped by the duplicate-tap cooldown.
func (b *Bot) OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: txtTooFast})
	}
	return nil
}

// OnAdminReject answers non-admins that reach an admin-only handler.
func (b *Bot) OnAdminReject(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: txtAdminOnly, ShowAlert: true})
	}
	return b.replyText(c, txtAdminOnly)
}

func mediaRef(p *tele.Photo) *questionnaire.MediaRef {
	if p == nil {
		return nil
	}
	return &questionnaire.MediaRef{FileID: p.FileID, UniqueID: p.UniqueID}
}

func documentRef(d *tele.Document) *questionnaire.DocumentRef {
	if d == nil {
		return nil
	}
	return &questionnaire.DocumentRef{FileID: d.FileID, FileName: d.FileName, MIME: d.MIME}
}
