package questionnaire

import (
	"fmt"
	"strings"
)

// Summary renders the recorded answers for admins, one line per step.
func (b *Bank) Summary(p *Progress) string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("📋 خلاصه اطلاعات کاربر:\n\n")
	for _, q := range b.questions {
		a, ok := p.Answer(q.Step)
		if !ok {
			continue
		}
		emoji := q.Emoji
		if emoji == "" {
			emoji = "•"
		}
		fmt.Fprintf(&sb, "%s %s: %s\n", emoji, q.Title, describe(a))
	}
	return sb.String()
}

func describe(a Answer) string {
	switch {
	case a.Document != nil:
		name := a.Document.FileName
		if name == "" {
			name = "فایل"
		}
		return "📎 " + name
	case len(a.Media) > 0:
		return fmt.Sprintf("تصاویر ارسال شد (%d عکس)", len(a.Media))
	default:
		return a.Text
	}
}

// MediaFiles returns every image file id recorded in p, in step order.
func (b *Bank) MediaFiles(p *Progress) []string {
	var ids []string
	for _, q := range b.questions {
		a, _ := p.Answer(q.Step)
		for _, m := range a.Media {
			ids = append(ids, m.FileID)
		}
	}
	return ids
}
