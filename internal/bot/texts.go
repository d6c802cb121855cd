package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Reply keyboard labels.
const (
	labelCourses       = "📚 دوره‌ها"
	labelStatus        = "📊 وضعیت من"
	labelQuestionnaire = "📋 پرسشنامه"
	labelCancel        = "❌ لغو"
	labelAdmin         = "🛠 پنل مدیریت"
)

// Inline button captions.
const (
	btnPay        = "💳 پرداخت و ارسال فیش"
	btnCoupon     = "🎟 کد تخفیف دارم"
	btnBack       = "🔙 بازگشت به منو"
	btnApprove    = "✅ تایید"
	btnReject     = "❌ رد"
	btnGrant      = "➕ یک فرصت دیگر"
	btnUpload     = "📤 ارسال برنامه"
	btnQStart     = "📝 شروع پرسشنامه"
	btnQResume    = "▶️ ادامه پرسشنامه"
	btnQRestart   = "🔄 شروع دوباره"
	btnQEdit      = "✏️ ویرایش پاسخ‌ها"
	btnPrev       = "⬅️ قبلی"
	btnNext       = "➡️ بعدی"
	btnFinishEdit = "✅ پایان ویرایش"
	btnPhotosDone = "✅ ادامه"
)

const (
	txtWelcome = "سلام رفیق خوبم💕\n\n" +
		"روی هر کدوم از دوره‌های مدنظرت که کلیک کنی اطلاعاتش برات ارسال میشه تا بتونی مناسب‌ترینشو متناسب با هدفت انتخاب کنی."
	txtHub             = "🏠 منوی اصلی\n\nیکی از دوره‌ها رو انتخاب کن:"
	txtPendingNote     = "⏳ فیش پرداخت شما در انتظار تایید ادمین است."
	txtRejectedNote    = "❌ پرداخت قبلی شما تایید نشد. می‌توانید دوباره فیش ارسال کنید."
	txtAskCoupon       = "🎟 کد تخفیف خود را ارسال کنید:"
	txtReceiptPending  = "✅ فیش شما دریافت شد و برای بررسی به ادمین ارسال شد.\n\nنتیجه به زودی اطلاع داده می‌شود."
	txtAttemptsOver    = "⚠️ تعداد دفعات مجاز ارسال فیش برای این دوره به پایان رسیده است.\n\nبرای ادامه با پشتیبانی تماس بگیرید."
	txtCancelled       = "✅ عملیات لغو شد. به منوی اصلی برگشتید."
	txtNothingToDo     = "در حال حاضر کاری برای لغو وجود ندارد."
	txtUnknownCommand  = "❓ این دستور شناخته نشد. از /start استفاده کنید."
	txtNoQuestionnaire = "📋 پرسشنامه پس از تایید پرداخت فعال می‌شود."
	txtQDone           = "🎉 پرسشنامه با موفقیت تکمیل شد!\n\nاطلاعات شما برای مربی ارسال شد و برنامه اختصاصی‌تان به زودی آماده می‌شود."
	txtQEditMenu       = "✅ پرسشنامه شما قبلاً تکمیل شده است.\n\nمی‌خواهید پاسخ‌ها را ویرایش کنید یا از ابتدا شروع کنید؟"
	txtEditSaved       = "✅ پاسخ به‌روزرسانی شد."
	txtEditFinished    = "✅ ویرایش پاسخ‌ها تمام شد."
	txtTooFast         = "⏳ لطفاً کمی صبر کنید."
	txtAdminOnly       = "⛔️ این بخش فقط برای ادمین‌ها است."
	txtConflict        = "⚠️ این پرداخت در حال بررسی توسط ادمین دیگری است یا قبلاً بررسی شده است."
	txtNoPending       = "✅ پرداخت در انتظاری وجود ندارد."
	txtPlanAskFile     = "📤 فایل یا عکس برنامه را ارسال کنید."
	txtPlanAskDesc     = "📝 حالا توضیحات برنامه را بنویسید."
	txtProgramReady    = "🎉 پرداخت شما تایید شد!\n\nبرنامه شما به زودی توسط مربی ارسال می‌شود."
	txtRejected        = "❌ متأسفانه پرداخت شما تایید نشد.\n\nلطفاً فیش صحیح را دوباره ارسال کنید یا با پشتیبانی تماس بگیرید."
	txtApprovedStart   = "🎉 پرداخت شما تایید شد!\n\nبرای دریافت برنامه اختصاصی، لطفاً پرسشنامه را تکمیل کنید."
	txtApprovedResume  = "🎉 پرداخت شما تایید شد!\n\nپرسشنامه نیمه‌کاره شما ذخیره شده است. از همان جا ادامه دهید."
	txtApprovedEdit    = "🎉 پرداخت شما تایید شد!\n\nپرسشنامه شما قبلاً تکمیل شده است. می‌توانید پاسخ‌ها را مرور و ویرایش کنید."
	txtAdminHelp       = "🛠 پنل مدیریت\n\n" +
		"/pending - پرداخت‌های در انتظار تایید\n" +
		"/status <user_id> - وضعیت یک کاربر\n" +
		"/grant <user_id> <course> <n|unlimited> - فرصت اضافه ارسال فیش\n" +
		"/upload <user_id> <course> - ارسال برنامه برای کاربر"
	txtGrantUsage  = "استفاده: /grant <user_id> <course> <n|unlimited>"
	txtUploadUsage = "استفاده: /upload <user_id> <course>"
)

var stateLabels = map[string]string{
	"NEW":                                  "🆕 کاربر جدید",
	"COURSE_SELECTED":                      "📚 دوره انتخاب شده، در انتظار پرداخت",
	"PAYMENT_PENDING":                      "⏳ پرداخت در انتظار تایید",
	"PAYMENT_APPROVED_NEEDS_QUESTIONNAIRE": "📋 پرداخت تایید شده، در انتظار تکمیل پرسشنامه",
	"PAYMENT_APPROVED_HAS_PROGRAM":         "✅ پرداخت تایید شده، برنامه فعال",
	"PAYMENT_REJECTED":                     "❌ پرداخت رد شده",
	"RETURNING_NO_COURSE":                  "🏠 بدون دوره فعال",
}

// FormatPrice renders a toman amount the way the coach writes prices:
// 3000000 -> "3M تومان", 599000 -> "599K تومان", 1250 -> "1,250 تومان".
func FormatPrice(price int64) string {
	switch {
	case price >= 1_000_000:
		m := price / 1_000_000
		k := (price % 1_000_000) / 1000
		if k == 0 {
			return fmt.Sprintf("%dM تومان", m)
		}
		return fmt.Sprintf("%d.%03dM تومان", m, k)
	case price >= 1000 && price%1000 == 0:
		return fmt.Sprintf("%dK تومان", price/1000)
	default:
		return groupDigits(price) + " تومان"
	}
}

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

const (
	txtCouponApplied = "✅ کد تخفیف اعمال شد."
	txtPlanSent      = "✅ برنامه ذخیره و برای کاربر ارسال شد."
	txtPlanStored    = "⚠️ برنامه ذخیره شد اما ارسال آن به کاربر ناموفق بود."
	txtGrantedUser   = "✅ ادمین یک فرصت دیگر برای ارسال فیش به شما داد. از منوی دوره‌ها دوباره اقدام کنید."
)
