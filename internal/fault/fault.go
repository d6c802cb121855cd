// Package fault classifies errors raised by the funnel and renders the
// notices shown to users and admins.
package fault

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind groups errors by how the bot recovers from them.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindState        Kind = "state"
	KindConflict     Kind = "conflict"
	KindStorage      Kind = "storage_corruption"
	KindNotification Kind = "notification"
	KindInternal     Kind = "internal"
)

// Error is a classified error. Msg is safe to show to the user.
type Error struct {
	Kind Kind
	Key  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Key != "" {
		b.WriteString(": ")
		b.WriteString(e.Key)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the stable code written to logs as err_code.
func (e *Error) Code() string {
	if e.Key != "" {
		return e.Key
	}
	return string(e.Kind)
}

// Validation builds a validation error carrying a corrective message.
func Validation(key, msg string) *Error {
	return &Error{Kind: KindValidation, Key: key, Msg: msg}
}

// State wraps err as a state error.
func State(key string, err error) *Error {
	return &Error{Kind: KindState, Key: key, Err: err}
}

// Conflict wraps err as a concurrency conflict.
func Conflict(key string, err error) *Error {
	return &Error{Kind: KindConflict, Key: key, Err: err}
}

// Notification wraps a failed outbound send.
func Notification(key string, err error) *Error {
	return &Error{Kind: KindNotification, Key: key, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// UserMessage returns the corrective text of a validation error, or "".
func UserMessage(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Msg
	}
	return ""
}

// NewRef returns a short reference id users can quote to support.
func NewRef() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// Notice describes a failure reported to a person.
type Notice struct {
	Ref  string
	At   time.Time
	Code string
	Next string
}

// NewNotice builds a notice for err.
func NewNotice(err error, next string, at time.Time) Notice {
	code := string(KindOf(err))
	var c interface{ Code() string }
	if errors.As(err, &c) {
		code = c.Code()
	}
	return Notice{Ref: NewRef(), At: at, Code: code, Next: next}
}

// ForUser renders the notice without internal details.
func (n Notice) ForUser() string {
	var b strings.Builder
	b.WriteString("⚠️ متأسفانه خطایی رخ داد.\n\n")
	fmt.Fprintf(&b, "کد خطا: %s\n", n.Code)
	fmt.Fprintf(&b, "شناسه پیگیری: %s\n", n.Ref)
	fmt.Fprintf(&b, "زمان: %s\n", n.At.Format("2006-01-02 15:04:05"))
	if n.Next != "" {
		b.WriteString("\n")
		b.WriteString(n.Next)
	}
	return b.String()
}

// ForAdmin renders the notice with the error type and message for triage.
func (n Notice) ForAdmin(err error, userID int64) string {
	var b strings.Builder
	b.WriteString("🚨 خطای سیستم\n\n")
	fmt.Fprintf(&b, "کاربر: %d\n", userID)
	fmt.Fprintf(&b, "کد خطا: %s\n", n.Code)
	fmt.Fprintf(&b, "شناسه پیگیری: %s\n", n.Ref)
	fmt.Fprintf(&b, "زمان: %s\n", n.At.Format(time.RFC3339))
	if err != nil {
		fmt.Fprintf(&b, "نوع: %T\n", rootCause(err))
		fmt.Fprintf(&b, "پیام: %s\n", err.Error())
	}
	return b.String()
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
