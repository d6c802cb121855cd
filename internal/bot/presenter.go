package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/coachbot/core/telegram/format"
	"github.com/m3rciful/coachbot/internal/approval"
	"github.com/m3rciful/coachbot/internal/catalog"
	"github.com/m3rciful/coachbot/internal/config"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
	"github.com/m3rciful/coachbot/internal/workflow"
)

// Callback keys.
const (
	cbCourse   = "course"
	cbPay      = "pay"
	cbCoupon   = "coupon"
	cbHub      = "hub"
	cbApprove  = "approve"
	cbReject   = "reject"
	cbGrant    = "grant"
	cbUpload   = "upload"
	cbQStart   = "q_start"
	cbQRestart = "q_restart"
	cbQEdit    = "q_edit"
	cbQNav     = "q_nav"
	cbQFinish  = "q_finish"
	cbQPhotos  = "q_photos"
	cbQChoice  = "q_choice"
)

// adminCallbacks are limited to administrators.
var adminCallbacks = []string{cbApprove, cbReject, cbGrant, cbUpload}

// Presenter renders every message the bot sends.
type Presenter struct {
	catalog *catalog.Catalog
	bank    *questionnaire.Bank
	card    config.PaymentConfig
}

// NewPresenter returns a Presenter for the given catalog and question bank.
func NewPresenter(cat *catalog.Catalog, bank *questionnaire.Bank, card config.PaymentConfig) *Presenter {
	return &Presenter{catalog: cat, bank: bank, card: card}
}

var (
	_ workflow.Presenter = (*Presenter)(nil)
	_ approval.Prompts   = (*Presenter)(nil)
)

func button(text, unique string, data ...string) notify.Button {
	return notify.Button{Text: text, Unique: unique, Data: strings.Join(data, "|")}
}

func uid(id int64) string { return strconv.FormatInt(id, 10) }

func (p *Presenter) courseTitle(id string) string {
	if c, ok := p.catalog.Course(id); ok && c.Title != "" {
		return c.Title
	}
	return id
}

func displayName(sess *session.Session) string {
	switch {
	case sess == nil:
		return ""
	case sess.Username != "":
		return "@" + sess.Username
	case sess.FirstName != "":
		return sess.FirstName
	default:
		return uid(sess.UserID)
	}
}

// Hub is the main menu: one button per course plus the step the user is on.
func (p *Presenter) Hub(state workflow.State) notify.Message {
	text := txtHub
	var rows [][]notify.Button
	for _, c := range p.catalog.Courses() {
		rows = append(rows, []notify.Button{button(c.Title, cbCourse, c.ID)})
	}
	switch state {
	case workflow.StatePaymentPending:
		text += "\n\n" + txtPendingNote
	case workflow.StatePaymentRejected:
		text += "\n\n" + txtRejectedNote
	case workflow.StateNeedsQuestionnaire:
		text += "\n\n" + txtApprovedStart
		rows = append(rows, []notify.Button{button(btnQStart, cbQStart)})
	}
	return notify.Message{Text: text, Buttons: rows, Plain: true}
}

// CourseCard describes a course with its purchase buttons.
func (p *Presenter) CourseCard(c catalog.Course) notify.Message {
	var b strings.Builder
	b.WriteString(c.Title)
	b.WriteString("\n\n")
	if c.Description != "" {
		b.WriteString(c.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "💰 قیمت: %s", FormatPrice(c.Price))
	return notify.Message{
		Text: b.String(),
		Buttons: [][]notify.Button{
			{button(btnPay, cbPay, c.ID)},
			{button(btnCoupon, cbCoupon, c.ID)},
			{button(btnBack, cbHub)},
		},
		Plain: true,
	}
}

// PaymentInstructions tells the user what to pay and where.
func (p *Presenter) PaymentInstructions(q workflow.Quote) notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "💳 پرداخت برای %s\n\n", q.Course.Title)
	if q.Coupon != "" {
		fmt.Fprintf(&b, "قیمت اصلی: %s\n", FormatPrice(q.Price))
		fmt.Fprintf(&b, "🎟 کد تخفیف %s (%d%%)\n", q.Coupon, q.Percent)
	}
	fmt.Fprintf(&b, "مبلغ قابل پرداخت: %s\n\n", FormatPrice(q.Final))
	if p.card.CardNumber != "" {
		fmt.Fprintf(&b, "شماره کارت: %s\n", p.card.CardNumber)
	}
	if p.card.CardHolder != "" {
		fmt.Fprintf(&b, "به نام: %s\n", p.card.CardHolder)
	}
	b.WriteString("\n📸 پس از واریز، عکس فیش را همینجا ارسال کنید.")
	return notify.Message{
		Text:    b.String(),
		Buttons: [][]notify.Button{{button(btnBack, cbHub)}},
		Plain:   true,
	}
}

// ReceiptAccepted confirms a submitted receipt.
func (p *Presenter) ReceiptAccepted(r workflow.Receipt) notify.Message {
	text := txtReceiptPending
	if r.Remaining < payment.UnlimitedAttempts/2 {
		text += fmt.Sprintf("\n\nفرصت‌های باقی‌مانده ارسال فیش: %d", r.Remaining)
	}
	return notify.Message{Text: text, Plain: true}
}

// ReceiptForAdmins is the receipt photo with the approval buttons.
func (p *Presenter) ReceiptForAdmins(rec payment.Record, sess *session.Session, remaining int) notify.Message {
	var b strings.Builder
	b.WriteString("🧾 فیش پرداخت جدید\n\n")
	fmt.Fprintf(&b, "👤 کاربر: %s (%d)\n", displayName(sess), rec.UserID)
	fmt.Fprintf(&b, "📚 دوره: %s\n", p.courseTitle(rec.Course))
	fmt.Fprintf(&b, "💰 مبلغ: %s\n", FormatPrice(rec.Amount))
	if rec.Coupon != "" {
		fmt.Fprintf(&b, "🎟 کد تخفیف: %s (قیمت اصلی %s)\n", rec.Coupon, FormatPrice(rec.OriginalAmount))
	}
	if remaining < payment.UnlimitedAttempts/2 {
		fmt.Fprintf(&b, "🔁 فرصت باقی‌مانده: %d\n", remaining)
	}
	fmt.Fprintf(&b, "🆔 %s", rec.ID)
	return notify.Message{
		Text:    b.String(),
		PhotoID: rec.ReceiptFileID,
		Buttons: [][]notify.Button{{
			button(btnApprove, cbApprove, uid(rec.UserID)),
			button(btnReject, cbReject, uid(rec.UserID)),
		}},
		Plain: true,
	}
}

// QuestionnaireForAdmins is the completed questionnaire summary.
func (p *Presenter) QuestionnaireForAdmins(sess *session.Session, summary string) notify.Message {
	head := fmt.Sprintf("📋 پرسشنامه تکمیل شد\n👤 کاربر: %s (%d)\n", displayName(sess), sess.UserID)
	var rows [][]notify.Button
	if sess.Course != "" {
		rows = [][]notify.Button{{button(btnUpload, cbUpload, uid(sess.UserID), sess.Course)}}
	}
	return notify.Message{Text: head + "\n" + summary, Buttons: rows, Plain: true}
}

// PlanForUser delivers an uploaded plan.
func (p *Presenter) PlanForUser(plan workflow.Plan) notify.Message {
	msg := notify.Message{
		Text:  "🏋️ برنامه تمرینی شما آماده است!\n\n" + plan.Description,
		Plain: true,
	}
	if plan.FileKind == workflow.PlanPhoto {
		msg.PhotoID = plan.FileID
	} else {
		msg.DocumentID = plan.FileID
	}
	return msg
}

// Resolved is the message sent to the user after an admin decision.
func (p *Presenter) Resolved(rec payment.Record, next approval.Next, progress *questionnaire.Progress) notify.Message {
	switch next {
	case approval.NextFreshStart:
		return notify.Message{Text: txtApprovedStart, Buttons: [][]notify.Button{{button(btnQStart, cbQStart)}}, Plain: true}
	case approval.NextResume:
		text := txtApprovedResume
		if progress != nil {
			text += fmt.Sprintf("\n\n📍 سوال %d از %d", progress.CurrentStep, p.bank.Len())
		}
		return notify.Message{Text: text, Buttons: [][]notify.Button{{button(btnQResume, cbQStart)}}, Plain: true}
	case approval.NextEditMenu:
		return notify.Message{Text: txtApprovedEdit, Buttons: editMenuButtons(), Plain: true}
	case approval.NextProgramReady:
		return notify.Message{Text: txtProgramReady + "\n\n📚 " + p.courseTitle(rec.Course), Plain: true}
	default:
		return notify.Message{
			Text:    txtRejected,
			Buttons: [][]notify.Button{{button(btnPay, cbPay, rec.Course)}, {button(btnBack, cbHub)}},
			Plain:   true,
		}
	}
}

// Fallback is the plain text used when Resolved cannot be delivered.
func (p *Presenter) Fallback(_ payment.Record, next approval.Next) string {
	switch next {
	case approval.NextFreshStart, approval.NextResume:
		return txtApprovedStart + "\n\n/start"
	case approval.NextEditMenu:
		return txtApprovedEdit + "\n\n/start"
	case approval.NextProgramReady:
		return txtProgramReady
	default:
		return txtRejected
	}
}

func editMenuButtons() [][]notify.Button {
	return [][]notify.Button{
		{button(btnQEdit, cbQEdit)},
		{button(btnQRestart, cbQRestart)},
		{button(btnBack, cbHub)},
	}
}

// EditMenu offers editing or restarting a completed questionnaire.
func (p *Presenter) EditMenu() notify.Message {
	return notify.Message{Text: txtQEditMenu, Buttons: editMenuButtons(), Plain: true}
}

// Question renders step q. In edit mode the current answer and the edit
// navigation are shown.
func (p *Presenter) Question(q questionnaire.Question, progress *questionnaire.Progress) notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "سوال %d از %d\n\n", q.Step, p.bank.Len())
	b.WriteString(q.Text)
	var rows [][]notify.Button
	if q.Kind == questionnaire.KindChoice {
		for i, c := range q.Choices {
			rows = append(rows, []notify.Button{button(c, cbQChoice, strconv.Itoa(q.Step), strconv.Itoa(i))})
		}
	}
	if q.Kind == questionnaire.KindMultiChoice {
		fmt.Fprintf(&b, "\n\nگزینه‌ها: %s\n(چند گزینه را با ویرگول جدا کنید)", strings.Join(q.Choices, "، "))
	}
	if q.Kind == questionnaire.KindPhoto {
		fmt.Fprintf(&b, "\n\n📸 حداقل %d و حداکثر %d عکس", max(q.MinItems, 1), q.MaxItems)
	}
	if progress != nil && progress.EditMode {
		if a, ok := progress.Answer(q.Step); ok {
			fmt.Fprintf(&b, "\n\n✏️ پاسخ فعلی: %s", answerText(a))
		}
		rows = append(rows,
			[]notify.Button{button(btnPrev, cbQNav, "-1"), button(btnNext, cbQNav, "1")},
			[]notify.Button{button(btnFinishEdit, cbQFinish)},
		)
	}
	return notify.Message{Text: b.String(), Buttons: rows, Plain: true}
}

func answerText(a questionnaire.Answer) string {
	switch {
	case a.Document != nil:
		return "📎 " + a.Document.FileName
	case len(a.Media) > 0:
		return fmt.Sprintf("%d عکس", len(a.Media))
	default:
		return a.Text
	}
}

// PhotoCollected acknowledges an image of a photo step that is still open.
func (p *Presenter) PhotoCollected(out questionnaire.Outcome) notify.Message {
	text := fmt.Sprintf("📸 عکس %d دریافت شد.", out.Collected)
	if out.Remaining > 0 {
		text += fmt.Sprintf(" می‌توانید تا %d عکس دیگر ارسال کنید.", out.Remaining)
	}
	var rows [][]notify.Button
	if out.Collected >= max(out.Question.MinItems, 1) {
		if out.Progress != nil && out.Progress.EditMode {
			rows = [][]notify.Button{{button(btnFinishEdit, cbQFinish)}}
		} else {
			rows = [][]notify.Button{{button(btnPhotosDone, cbQPhotos)}}
		}
	}
	return notify.Message{Text: text, Buttons: rows, Plain: true}
}

// QuestionnaireDone thanks the user after the last step.
func (p *Presenter) QuestionnaireDone() notify.Message {
	return notify.Message{Text: txtQDone, Plain: true}
}

// Status renders the user's own status.
func (p *Presenter) Status(state workflow.State, snap workflow.Snapshot) notify.Message {
	var b strings.Builder
	b.WriteString(stateLabel(state))
	if snap.Latest != nil {
		fmt.Fprintf(&b, "\n\n📚 دوره: %s\n💰 مبلغ: %s", p.courseTitle(snap.Latest.Course), FormatPrice(snap.Latest.Amount))
	}
	if snap.Progress != nil && snap.Progress.Active() {
		fmt.Fprintf(&b, "\n📋 پرسشنامه: سوال %d از %d", snap.Progress.CurrentStep, p.bank.Len())
	}
	var rows [][]notify.Button
	if state == workflow.StateNeedsQuestionnaire {
		rows = [][]notify.Button{{button(btnQStart, cbQStart)}}
	}
	return notify.Message{Text: Markdown("📊 وضعیت شما", b.String()), Buttons: rows}
}

// AdminStatus renders a user's status for an admin.
func (p *Presenter) AdminStatus(state workflow.State, snap workflow.Snapshot, payments []payment.Record) notify.Message {
	var b strings.Builder
	sess := snap.Session
	fmt.Fprintf(&b, "👤 کاربر: %s (%d)\n", displayName(sess), sess.UserID)
	fmt.Fprintf(&b, "وضعیت: %s\n", stateLabel(state))
	if !sess.Waiting.Idle() {
		fmt.Fprintf(&b, "در انتظار: %s\n", sess.Waiting.Kind)
	}
	for course, n := range sess.ReceiptAttempts {
		fmt.Fprintf(&b, "🔁 %s: %d فیش (+%d)\n", p.courseTitle(course), n, sess.Extra(course))
	}
	if len(payments) > 0 {
		b.WriteString("\n🧾 پرداخت‌ها:\n")
		for _, r := range payments[:min(len(payments), 5)] {
			fmt.Fprintf(&b, "• %s  %s  %s  %s", r.CreatedAt.Format("2006-01-02"), p.courseTitle(r.Course), FormatPrice(r.Amount), r.Status)
			if r.Note != "" {
				fmt.Fprintf(&b, " (%s)", r.Note)
			}
			b.WriteString("\n")
		}
	}
	if snap.Progress != nil {
		if snap.Progress.Completed {
			b.WriteString("\n📋 پرسشنامه تکمیل شده")
		} else {
			fmt.Fprintf(&b, "\n📋 پرسشنامه: سوال %d", snap.Progress.CurrentStep)
		}
	}
	return notify.Message{Text: b.String(), Plain: true}
}

// PendingItem is one pending payment with its buttons.
func (p *Presenter) PendingItem(rec payment.Record) notify.Message {
	text := fmt.Sprintf("⏳ %d  %s  %s\n%s", rec.UserID, p.courseTitle(rec.Course), FormatPrice(rec.Amount),
		rec.CreatedAt.Format("2006-01-02 15:04"))
	return notify.Message{
		Text:    text,
		PhotoID: rec.ReceiptFileID,
		Buttons: [][]notify.Button{{
			button(btnApprove, cbApprove, uid(rec.UserID)),
			button(btnReject, cbReject, uid(rec.UserID)),
		}},
		Plain: true,
	}
}

// AdminResolved confirms a decision to the admin who made it.
func (p *Presenter) AdminResolved(res approval.Result) notify.Message {
	verb := "✅ تایید شد"
	if res.Record.Status == payment.StatusRejected {
		verb = "❌ رد شد"
	}
	text := fmt.Sprintf("%s\n👤 %d  📚 %s", verb, res.Record.UserID, p.courseTitle(res.Record.Course))
	if res.NotifyErr != nil {
		text += "\n\n⚠️ ارسال پیام به کاربر ناموفق بود."
	}
	var rows [][]notify.Button
	if res.Record.Status == payment.StatusRejected {
		rows = [][]notify.Button{{button(btnGrant, cbGrant, uid(res.Record.UserID), res.Record.Course)}}
	}
	if res.Next == approval.NextProgramReady {
		rows = [][]notify.Button{{button(btnUpload, cbUpload, uid(res.Record.UserID), res.Record.Course)}}
	}
	return notify.Message{Text: text, Buttons: rows, Plain: true}
}

// Markdown renders text for Markdown messages with user content escaped.
func Markdown(bold, body string) string {
	return "*" + format.EscapeMarkdown(bold) + "*\n\n" + format.EscapeMarkdown(body)
}

func stateLabel(s workflow.State) string {
	if l, ok := stateLabels[string(s)]; ok {
		return l
	}
	return string(s)
}
