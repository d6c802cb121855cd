package workflow

import (
	"testing"

	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
)

type policy map[string]bool

func (p policy) RequiresQuestionnaire(course string) bool { return p[course] }

func TestDerive(t *testing.T) {
	pol := policy{"online_cardio": true}
	started := &session.Session{StartedBot: true}
	withCourse := &session.Session{StartedBot: true, CourseSelected: "online_cardio"}
	returned := &session.Session{StartedBot: true, CourseSelected: "online_cardio", ReturnedToHub: true}
	rec := func(course string, st payment.Status) *payment.Record {
		return &payment.Record{Course: course, Status: st}
	}
	done := &questionnaire.Progress{CurrentStep: 21, Completed: true}
	active := &questionnaire.Progress{CurrentStep: 5}

	cases := []struct {
		name     string
		sess     *session.Session
		latest   *payment.Record
		progress *questionnaire.Progress
		want     State
	}{
		{"no session", nil, nil, nil, StateNew},
		{"never started", &session.Session{}, nil, nil, StateNew},
		{"hub without course", started, nil, nil, StateReturningNoCourse},
		{"course selected", withCourse, nil, nil, StateCourseSelected},
		{"pending", withCourse, rec("online_cardio", payment.StatusPending), nil, StatePaymentPending},
		{"approved needs questionnaire", withCourse, rec("online_cardio", payment.StatusApproved), nil, StateNeedsQuestionnaire},
		{"approved questionnaire in progress", withCourse, rec("online_cardio", payment.StatusApproved), active, StateNeedsQuestionnaire},
		{"approved questionnaire done", withCourse, rec("online_cardio", payment.StatusApproved), done, StateHasProgram},
		{"approved in person", withCourse, rec("in_person", payment.StatusApproved), nil, StateHasProgram},
		{"rejected", withCourse, rec("online_cardio", payment.StatusRejected), nil, StatePaymentRejected},
		// Intentional: a rejection is hidden once the user returned to the hub.
		{"rejected after hub", returned, rec("online_cardio", payment.StatusRejected), nil, StateCourseSelected},
		{"rejected after hub no course", &session.Session{StartedBot: true, ReturnedToHub: true}, rec("online_cardio", payment.StatusRejected), nil, StateReturningNoCourse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Derive(tc.sess, tc.latest, tc.progress, pol); got != tc.want {
				t.Fatalf("Derive = %s, want %s", got, tc.want)
			}
		})
	}
}
