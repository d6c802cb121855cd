package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "reply_counters"

// replyCounters tracks what a handler sent back for the handler summary log.
type replyCounters struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// countingContext wraps tele.Context and counts successful replies.
type countingContext struct {
	tele.Context
	n *replyCounters
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m countingContext) count(err error, opts []any) error {
	if err == nil {
		m.n.messages.Add(1)
		if hasKeyboard(opts) {
			m.n.keyboard.Store(true)
		}
	}
	return err
}

func (m countingContext) Send(what any, opts ...any) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what any, opts ...any) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what any, opts ...any) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what any, opts ...any) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware counts the replies sent by downstream handlers.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &replyCounters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns the number of replies and whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*replyCounters)
	if !ok {
		return 0, false
	}
	return int(n.messages.Load()), n.keyboard.Load()
}
