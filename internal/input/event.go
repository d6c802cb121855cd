// Package input decides what kind of message each user is expected to send
// next and dispatches incoming events accordingly.
package input

import "github.com/m3rciful/coachbot/internal/questionnaire"

// Kind is the kind of an inbound event.
type Kind int

const (
	KindText Kind = iota + 1
	KindPhoto
	KindDocument
	KindOtherMedia
	KindButton
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindDocument:
		return "document"
	case KindOtherMedia:
		return "other_media"
	case KindButton:
		return "button"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Event is one inbound update reduced to what the router needs.
type Event struct {
	UserID int64
	Kind   Kind
	// Text is the message text, button data or command payload.
	Text     string
	Photo    *questionnaire.MediaRef
	Document *questionnaire.DocumentRef
	// Media names the other-media type, e.g. "sticker".
	Media string
}
