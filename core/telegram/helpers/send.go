package helpers

import (
	"sync/atomic"

	"github.com/m3rciful/coachbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the outbound dispatcher used by the reply helpers.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Dispatcher returns the wired dispatcher or nil.
func Dispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// reply runs the send through the dispatcher when one is wired.
func reply(c tele.Context, action string, run func() error) error {
	disp := Dispatcher()
	if disp == nil {
		return run()
	}
	return disp.Do(BuildContext(c), action, "sendMessage", run)
}

// SendText replies with plain text.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return reply(c, "send.text", func() error { return c.Send(text, opts) })
}

// SendMD replies with Markdown text and an optional keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return reply(c, "send.md", func() error { return c.Send(text, opts) })
}

// EditOrSendMD edits the callback's message or sends a new one.
func EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return c.EditOrSend(text, opts)
}
