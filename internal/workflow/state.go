// Package workflow derives a user's funnel state and applies the user-side
// transitions: course choice, coupons, receipts and the questionnaire.
package workflow

import (
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
)

// State is the derived funnel position of a user.
type State string

const (
	StateNew                State = "NEW"
	StateCourseSelected     State = "COURSE_SELECTED"
	StatePaymentPending     State = "PAYMENT_PENDING"
	StateNeedsQuestionnaire State = "PAYMENT_APPROVED_NEEDS_QUESTIONNAIRE"
	StateHasProgram         State = "PAYMENT_APPROVED_HAS_PROGRAM"
	StatePaymentRejected    State = "PAYMENT_REJECTED"
	StateReturningNoCourse  State = "RETURNING_NO_COURSE"
)

// QuestionnairePolicy reports whether an approved course needs the questionnaire.
type QuestionnairePolicy interface {
	RequiresQuestionnaire(course string) bool
}

// Derive computes the state from the session, the latest payment (nil when
// none) and the questionnaire progress (nil when never started). It is the
// only place the state is computed.
//
// A rejected payment stops counting once the user has returned to the main
// hub; the user then falls back to the course-selection states.
func Derive(sess *session.Session, latest *payment.Record, progress *questionnaire.Progress, policy QuestionnairePolicy) State {
	if sess == nil || !sess.StartedBot {
		return StateNew
	}
	if latest != nil {
		switch latest.Status {
		case payment.StatusPending:
			return StatePaymentPending
		case payment.StatusApproved:
			if policy == nil || !policy.RequiresQuestionnaire(latest.Course) {
				return StateHasProgram
			}
			if progress != nil && progress.Completed {
				return StateHasProgram
			}
			return StateNeedsQuestionnaire
		case payment.StatusRejected:
			if !sess.ReturnedToHub {
				return StatePaymentRejected
			}
		}
	}
	if sess.CourseSelected != "" {
		return StateCourseSelected
	}
	return StateReturningNoCourse
}
