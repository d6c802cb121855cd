package session

// WaitKind names the single kind of input a user is expected to send next.
type WaitKind string

const (
	WaitNone          WaitKind = ""
	WaitReceiptPhoto  WaitKind = "receipt_photo"
	WaitCouponCode    WaitKind = "coupon_code"
	WaitQuestionnaire WaitKind = "questionnaire_step"
	WaitAdminUpload   WaitKind = "admin_upload"
)

// UploadStage is the step of the admin plan upload flow.
type UploadStage string

const (
	StagePlanFile    UploadStage = "plan_file"
	StageDescription UploadStage = "description"
)

// Waiting is a tagged union keyed by Kind. Only the fields of the active
// kind are meaningful.
type Waiting struct {
	Kind WaitKind `json:"kind,omitempty"`

	// Course applies to receipt_photo, coupon_code and admin_upload.
	Course string `json:"course,omitempty"`
	// Step applies to questionnaire_step.
	Step int `json:"step,omitempty"`

	// Admin upload fields.
	Stage      UploadStage `json:"stage,omitempty"`
	TargetUser int64       `json:"target_user,omitempty"`
	FileID     string      `json:"file_id,omitempty"`
	FileKind   string      `json:"file_kind,omitempty"`
}

// Idle reports whether nothing is expected.
func (w Waiting) Idle() bool { return w.Kind == WaitNone }

// ReceiptPhoto expects a receipt image for course.
func ReceiptPhoto(course string) Waiting {
	return Waiting{Kind: WaitReceiptPhoto, Course: course}
}

// CouponCode expects a coupon code before the receipt for course.
func CouponCode(course string) Waiting {
	return Waiting{Kind: WaitCouponCode, Course: course}
}

// QuestionnaireStep expects the answer to questionnaire step n.
func QuestionnaireStep(n int) Waiting {
	return Waiting{Kind: WaitQuestionnaire, Step: n}
}

// AdminUpload expects an admin to send the plan for target at the given stage.
func AdminUpload(stage UploadStage, target int64, course string) Waiting {
	return Waiting{Kind: WaitAdminUpload, Stage: stage, TargetUser: target, Course: course}
}

// flagName is the audit name reported when the waiting state is cleared.
func (w Waiting) flagName() string {
	switch w.Kind {
	case WaitReceiptPhoto:
		return "awaiting_receipt_photo"
	case WaitCouponCode:
		return "awaiting_coupon_code"
	case WaitQuestionnaire:
		return "questionnaire_active"
	case WaitAdminUpload:
		return "admin_uploading_plan"
	default:
		return ""
	}
}
