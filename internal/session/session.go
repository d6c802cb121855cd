// Package session keeps the durable per-user conversation record.
package session

import (
	"time"

	"github.com/m3rciful/coachbot/internal/payment"
)

// Session is the durable record kept for every user who talked to the bot.
type Session struct {
	UserID     int64  `json:"user_id"`
	StartedBot bool   `json:"started_bot"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`

	CourseSelected string         `json:"course_selected,omitempty"`
	Course         string         `json:"course,omitempty"`
	PaymentStatus  payment.Status `json:"payment_status,omitempty"`
	ReturnedToHub  bool           `json:"returned_to_hub,omitempty"`

	Waiting       Waiting `json:"waiting"`
	PendingCoupon string  `json:"pending_coupon,omitempty"`

	ReceiptAttempts map[string]int `json:"receipt_attempts,omitempty"`
	ExtraAttempts   map[string]int `json:"extra_attempts,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Patch lists the fields to change in a Merge. Nil fields are left as they are.
// Entries of the attempt maps are set individually; a negative value removes the key.
type Patch struct {
	StartedBot     *bool
	Username       *string
	FirstName      *string
	CourseSelected *string
	Course         *string
	PaymentStatus  *payment.Status
	ReturnedToHub  *bool
	Waiting        *Waiting
	PendingCoupon  *string

	ReceiptAttempts map[string]int
	ExtraAttempts   map[string]int
}

// Ptr returns a pointer to v for building patches.
func Ptr[T any](v T) *T { return &v }

func (p Patch) apply(s *Session) {
	if p.StartedBot != nil {
		s.StartedBot = *p.StartedBot
	}
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.FirstName != nil {
		s.FirstName = *p.FirstName
	}
	if p.CourseSelected != nil {
		s.CourseSelected = *p.CourseSelected
	}
	if p.Course != nil {
		s.Course = *p.Course
	}
	if p.PaymentStatus != nil {
		s.PaymentStatus = *p.PaymentStatus
	}
	if p.ReturnedToHub != nil {
		s.ReturnedToHub = *p.ReturnedToHub
	}
	if p.Waiting != nil {
		s.Waiting = *p.Waiting
	}
	if p.PendingCoupon != nil {
		s.PendingCoupon = *p.PendingCoupon
	}
	s.ReceiptAttempts = mergeCounts(s.ReceiptAttempts, p.ReceiptAttempts)
	s.ExtraAttempts = mergeCounts(s.ExtraAttempts, p.ExtraAttempts)
}

func mergeCounts(dst, src map[string]int) map[string]int {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]int, len(src))
	}
	for k, v := range src {
		if v < 0 {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
	return dst
}

// Attempts returns the receipt submissions recorded for course.
func (s *Session) Attempts(course string) int { return s.ReceiptAttempts[course] }

// Extra returns the admin-granted extra submissions for course.
func (s *Session) Extra(course string) int { return s.ExtraAttempts[course] }
