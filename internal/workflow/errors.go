package workflow

import "errors"

var (
	// ErrNoCouponContext means a coupon arrived while none was requested.
	ErrNoCouponContext = errors.New("workflow: no coupon context")
	// ErrAttemptsExhausted means the receipt cap for the course is reached.
	ErrAttemptsExhausted = errors.New("workflow: receipt attempts exhausted")
	// ErrNoCourseSelected means the transition needs a selected course.
	ErrNoCourseSelected = errors.New("workflow: no course selected")
	// ErrUnknownCourse means the course id is not in the catalog.
	ErrUnknownCourse = errors.New("workflow: unknown course")
	// ErrNoReceiptContext means a receipt arrived while none was requested.
	ErrNoReceiptContext = errors.New("workflow: no receipt context")
)
