package questionnaire

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

// Kind is the type of answer a question accepts.
type Kind string

const (
	KindText           Kind = "text"
	KindNumber         Kind = "number"
	KindChoice         Kind = "choice"
	KindMultiChoice    Kind = "multichoice"
	KindPhone          Kind = "phone"
	KindPhoto          Kind = "photo"
	KindTextOrDocument Kind = "text_or_document"
)

// Condition makes a step eligible only when an earlier answer matches exactly.
type Condition struct {
	Step   int    `yaml:"step"`
	Answer string `yaml:"answer"`
}

// Question is one step of the questionnaire.
type Question struct {
	Step  int    `yaml:"step"`
	Title string `yaml:"title"`
	Emoji string `yaml:"emoji"`
	Kind  Kind   `yaml:"kind"`
	Text  string `yaml:"text"`

	MinLen   int        `yaml:"min_length"`
	MaxLen   int        `yaml:"max_length"`
	Min      *int       `yaml:"min"`
	Max      *int       `yaml:"max"`
	Pattern  string     `yaml:"pattern"`
	Choices  []string   `yaml:"choices"`
	MinItems int        `yaml:"min_items"`
	MaxItems int        `yaml:"max_items"`
	Name     bool       `yaml:"name"`
	Cond     *Condition `yaml:"condition"`

	re *regexp.Regexp
}

// AcceptsText reports whether a text message can answer q.
func (q Question) AcceptsText() bool { return q.Kind != KindPhoto }

// AcceptsDocument reports whether a file can answer q.
func (q Question) AcceptsDocument() bool { return q.Kind == KindTextOrDocument }

// AcceptsPhoto reports whether an image can answer q.
func (q Question) AcceptsPhoto() bool { return q.Kind == KindPhoto }

// Bank is an ordered, validated set of questions.
type Bank struct {
	questions []Question
	byStep    map[int]int
}

// DefaultBank returns the embedded question bank.
func DefaultBank() *Bank {
	b, err := ParseBank(defaultQuestions)
	if err != nil {
		panic(fmt.Sprintf("questionnaire: embedded bank: %v", err))
	}
	return b
}

// LoadBank reads a bank from path, or returns the default when path is empty.
func LoadBank(path string) (*Bank, error) {
	if path == "" {
		return DefaultBank(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return ParseBank(data)
}

// ParseBank decodes and validates a YAML question bank.
func ParseBank(data []byte) (*Bank, error) {
	var doc struct {
		Questions []Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	if len(doc.Questions) == 0 {
		return nil, fmt.Errorf("parse questions: no questions")
	}
	qs := doc.Questions
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Step < qs[j].Step })
	b := &Bank{questions: qs, byStep: make(map[int]int, len(qs))}
	for i := range qs {
		q := &qs[i]
		if q.Step <= 0 {
			return nil, fmt.Errorf("question %d: step must be positive", i)
		}
		if _, dup := b.byStep[q.Step]; dup {
			return nil, fmt.Errorf("question %d: duplicate step", q.Step)
		}
		switch q.Kind {
		case KindText, KindNumber, KindPhone, KindTextOrDocument:
		case KindChoice, KindMultiChoice:
			if len(q.Choices) == 0 {
				return nil, fmt.Errorf("question %d: %s needs choices", q.Step, q.Kind)
			}
		case KindPhoto:
			if q.MinItems <= 0 {
				q.MinItems = 1
			}
			if q.MaxItems < q.MinItems {
				q.MaxItems = q.MinItems
			}
		default:
			return nil, fmt.Errorf("question %d: unknown kind %q", q.Step, q.Kind)
		}
		if q.Kind == KindPhone && q.Pattern == "" {
			q.Pattern = `^09[0-9]{9}$`
		}
		if q.Pattern != "" {
			re, err := regexp.Compile(q.Pattern)
			if err != nil {
				return nil, fmt.Errorf("question %d: pattern: %w", q.Step, err)
			}
			q.re = re
		}
		if q.Cond != nil && q.Cond.Step >= q.Step {
			return nil, fmt.Errorf("question %d: condition must reference an earlier step", q.Step)
		}
		b.byStep[q.Step] = i
	}
	return b, nil
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.questions) }

// Question returns the question for step.
func (b *Bank) Question(step int) (Question, bool) {
	i, ok := b.byStep[step]
	if !ok {
		return Question{}, false
	}
	return b.questions[i], true
}

// Questions returns the questions in step order.
func (b *Bank) Questions() []Question {
	return append([]Question(nil), b.questions...)
}

// Eligible reports whether step exists and its condition holds for answers.
func (b *Bank) Eligible(step int, answers map[string]Answer) bool {
	q, ok := b.Question(step)
	if !ok {
		return false
	}
	if q.Cond == nil {
		return true
	}
	prev, ok := answers[stepKey(q.Cond.Step)]
	return ok && strings.TrimSpace(prev.Text) == q.Cond.Answer
}

// next returns the first eligible step after step, or false when none remains.
func (b *Bank) next(step int, answers map[string]Answer) (int, bool) {
	for _, q := range b.questions {
		if q.Step > step && b.Eligible(q.Step, answers) {
			return q.Step, true
		}
	}
	return 0, false
}

// prev returns the last eligible step before step.
func (b *Bank) prev(step int, answers map[string]Answer) (int, bool) {
	for i := len(b.questions) - 1; i >= 0; i-- {
		q := b.questions[i]
		if q.Step < step && b.Eligible(q.Step, answers) {
			return q.Step, true
		}
	}
	return 0, false
}
