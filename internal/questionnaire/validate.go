package questionnaire

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m3rciful/coachbot/internal/fault"
)

var digitFolder = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// foldDigits maps Persian and Arabic-Indic digits to ASCII.
func foldDigits(s string) string { return digitFolder.Replace(s) }

// Validate checks a text answer against the question's kind and constraints.
func (q Question) Validate(text string) error {
	v := strings.TrimSpace(text)
	switch q.Kind {
	case KindPhoto:
		return fault.Validation("questionnaire.photo_expected", "📸 لطفاً برای این سوال عکس ارسال کنید.")
	case KindNumber:
		return q.validateNumber(v)
	case KindPhone:
		if q.re != nil && !q.re.MatchString(foldDigits(v)) {
			return fault.Validation("questionnaire.bad_phone", "شماره تلفن نامعتبر است (مثال: 09123456789)")
		}
		return nil
	case KindChoice:
		for _, c := range q.Choices {
			if v == c {
				return nil
			}
		}
		return fault.Validation("questionnaire.bad_choice",
			"لطفا یکی از گزینه‌های موجود را انتخاب کنید: "+strings.Join(q.Choices, "، "))
	case KindMultiChoice:
		return q.validateMulti(v)
	default:
		return q.validateText(v)
	}
}

func (q Question) validateNumber(v string) error {
	n, err := strconv.Atoi(foldDigits(v))
	if err != nil {
		return fault.Validation("questionnaire.not_number", "لطفا یک عدد معتبر وارد کنید")
	}
	if q.Min != nil && n < *q.Min {
		return fault.Validation("questionnaire.below_min", fmt.Sprintf("حداقل مقدار %d است", *q.Min))
	}
	if q.Max != nil && n > *q.Max {
		return fault.Validation("questionnaire.above_max", fmt.Sprintf("حداکثر مقدار %d است", *q.Max))
	}
	return nil
}

func (q Question) validateText(v string) error {
	n := utf8.RuneCountInString(v)
	if n == 0 {
		return fault.Validation("questionnaire.empty", "لطفاً پاسخ خود را بنویسید.")
	}
	if q.MinLen > 0 && n < q.MinLen {
		return fault.Validation("questionnaire.too_short", fmt.Sprintf("حداقل %d کاراکتر وارد کنید", q.MinLen))
	}
	if q.MaxLen > 0 && n > q.MaxLen {
		return fault.Validation("questionnaire.too_long", fmt.Sprintf("حداکثر %d کاراکتر مجاز است", q.MaxLen))
	}
	if q.re != nil && !q.re.MatchString(v) {
		return fault.Validation("questionnaire.bad_format", "قالب پاسخ معتبر نیست.")
	}
	if q.Name {
		if !strings.ContainsFunc(v, unicode.IsLetter) {
			return fault.Validation("questionnaire.name_no_letter",
				"نام باید حداقل شامل یک حرف باشد. لطفاً نام و نام خانوادگی خود را به صورت کامل وارد کنید.")
		}
		if strings.IndexFunc(v, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
			return fault.Validation("questionnaire.name_digits",
				"نام نمی‌تواند فقط شامل عدد باشد. لطفاً نام و نام خانوادگی خود را وارد کنید.")
		}
	}
	return nil
}

func (q Question) validateMulti(v string) error {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '،' })
	if len(parts) == 0 {
		return fault.Validation("questionnaire.empty", "لطفاً حداقل یک گزینه را انتخاب کنید.")
	}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		found := false
		for _, c := range q.Choices {
			if p == c {
				found = true
				break
			}
		}
		if !found {
			return fault.Validation("questionnaire.bad_choice", fmt.Sprintf("گزینه '%s' نامعتبر است", p))
		}
	}
	return nil
}
