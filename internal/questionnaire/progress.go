package questionnaire

import (
	"strconv"
	"time"
)

// MediaRef points at an uploaded image by its Telegram file id.
type MediaRef struct {
	FileID   string `json:"file_id"`
	UniqueID string `json:"unique_id,omitempty"`
}

// DocumentRef points at an uploaded file.
type DocumentRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MIME     string `json:"mime,omitempty"`
}

// Answer holds one of a text, a media list or a document.
type Answer struct {
	Text     string       `json:"text,omitempty"`
	Media    []MediaRef   `json:"media,omitempty"`
	Document *DocumentRef `json:"document,omitempty"`
}

// Input is a text or document answer to a step.
type Input struct {
	Text     string
	Document *DocumentRef
}

// Progress is the durable questionnaire state of one person.
type Progress struct {
	UserID      int64             `json:"user_id"`
	CurrentStep int               `json:"current_step"`
	Answers     map[string]Answer `json:"answers"`
	Completed   bool              `json:"completed"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at,omitzero"`
	EditMode    bool              `json:"edit_mode,omitempty"`
	EditStep    int               `json:"edit_step,omitempty"`
	// EditFresh is set while the edited photo step has not received a new image.
	EditFresh   bool      `json:"edit_fresh,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

func stepKey(step int) string { return strconv.Itoa(step) }

// Active reports whether the questionnaire has started and is not completed.
func (p *Progress) Active() bool {
	return p != nil && p.CurrentStep > 0 && !p.Completed
}

// Answer returns the recorded answer for step.
func (p *Progress) Answer(step int) (Answer, bool) {
	if p == nil {
		return Answer{}, false
	}
	a, ok := p.Answers[stepKey(step)]
	return a, ok
}

// FocusStep returns the step the user is answering: the edit step in edit mode,
// otherwise the current step.
func (p *Progress) FocusStep() int {
	if p.EditMode {
		return p.EditStep
	}
	return p.CurrentStep
}

func (p *Progress) set(step int, a Answer) {
	if p.Answers == nil {
		p.Answers = make(map[string]Answer)
	}
	p.Answers[stepKey(step)] = a
}
