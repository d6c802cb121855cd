package bot

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/m3rciful/coachbot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/coachbot/core/telegram/sender"
	"github.com/m3rciful/coachbot/internal/notify"

	tele "gopkg.in/telebot.v4"
)

// ErrNotConnected is returned by Sender before the bot is running.
var ErrNotConnected = errors.New("bot: telegram sender not connected")

// Sender delivers notify messages through the running bot. It is bound once
// the runtime starts; sends before that fail with ErrNotConnected.
type Sender struct {
	bot  atomic.Pointer[tele.Bot]
	disp atomic.Pointer[tgsender.Dispatcher]
}

// Bind attaches the running bot and its dispatcher.
func (s *Sender) Bind(b *tele.Bot, d *tgsender.Dispatcher) {
	s.bot.Store(b)
	s.disp.Store(d)
}

// Send implements notify.Sender.
func (s *Sender) Send(ctx context.Context, chatID int64, msg notify.Message) error {
	b := s.bot.Load()
	if b == nil {
		return ErrNotConnected
	}
	what, endpoint := content(msg)
	opts := sendOptions(msg)
	call := func() error {
		_, err := b.Send(tele.ChatID(chatID), what, opts)
		return err
	}
	if d := s.disp.Load(); d != nil {
		return d.Do(ctx, "notify.send", endpoint, call)
	}
	return call()
}

func content(msg notify.Message) (any, string) {
	switch {
	case msg.PhotoID != "":
		return &tele.Photo{File: tele.File{FileID: msg.PhotoID}, Caption: msg.Text}, "sendPhoto"
	case msg.DocumentID != "":
		return &tele.Document{File: tele.File{FileID: msg.DocumentID}, Caption: msg.Text}, "sendDocument"
	default:
		return msg.Text, "sendMessage"
	}
}

func sendOptions(msg notify.Message) *tele.SendOptions {
	opts := &tele.SendOptions{ReplyMarkup: inlineMarkup(msg.Buttons)}
	if !msg.Plain {
		opts.ParseMode = tele.ModeMarkdown
	}
	return opts
}

// inlineMarkup converts notify buttons into an inline keyboard; nil for none.
func inlineMarkup(rows [][]notify.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Text, Unique: b.Unique, Data: b.Data})
		}
		out = append(out, r)
	}
	return keyboard.InlineButtonsRows(out...)
}
