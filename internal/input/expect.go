package input

import (
	"fmt"

	"github.com/m3rciful/coachbot/internal/questionnaire"
)

// Expect is the input a user's context waits for.
type Expect string

const (
	ExpectNone            Expect = "none"
	ExpectPlanFile        Expect = "plan_file"
	ExpectPlanDescription Expect = "plan_description"
	ExpectReceipt         Expect = "receipt_photo"
	ExpectCoupon          Expect = "coupon_code"
	ExpectText            Expect = "text"
	ExpectPhoto           Expect = "photo"
	ExpectTextOrDocument  Expect = "text_or_document"
)

// Expectation is the resolved expectation for one user.
type Expectation struct {
	Expect Expect
	// Step is the questionnaire step being answered, if any.
	Step int
	Edit bool
	// Healed is set when the questionnaire flag was rebuilt from progress.
	Healed bool
}

// Accepts reports whether an event of kind k satisfies e.
func (e Expect) Accepts(k Kind) bool {
	switch e {
	case ExpectPlanFile:
		return k == KindDocument || k == KindPhoto
	case ExpectPlanDescription, ExpectCoupon, ExpectText:
		return k == KindText
	case ExpectReceipt, ExpectPhoto:
		return k == KindPhoto
	case ExpectTextOrDocument:
		return k == KindText || k == KindDocument
	default:
		return false
	}
}

func forQuestion(q questionnaire.Question) Expect {
	switch {
	case q.AcceptsPhoto():
		return ExpectPhoto
	case q.AcceptsDocument():
		return ExpectTextOrDocument
	default:
		return ExpectText
	}
}

var expectLabels = map[Expect]string{
	ExpectPlanFile:        "فایل یا عکس برنامه",
	ExpectPlanDescription: "متن توضیحات برنامه",
	ExpectReceipt:         "عکس رسید پرداخت",
	ExpectCoupon:          "متن کد تخفیف",
	ExpectText:            "پاسخ متنی",
	ExpectPhoto:           "عکس",
	ExpectTextOrDocument:  "پاسخ متنی یا فایل",
}

// WrongInputMessage is the notice sent when an event does not match e.
func WrongInputMessage(e Expectation) string {
	label, ok := expectLabels[e.Expect]
	if !ok {
		label = "ورودی دیگری"
	}
	if e.Step > 0 {
		return fmt.Sprintf("⚠️ در این مرحله (سوال %d) %s انتظار می‌رود. لطفاً %s ارسال کنید.", e.Step, label, label)
	}
	return fmt.Sprintf("⚠️ در این مرحله %s انتظار می‌رود. لطفاً %s ارسال کنید.", label, label)
}
