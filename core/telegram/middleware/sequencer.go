package middleware

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m3rciful/coachbot/core/logger"
	tghelpers "github.com/m3rciful/coachbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Sequencer runs each user's updates one at a time in arrival order on a
// per-user lane. Different users run in parallel. The bot must dispatch
// updates synchronously so that arrival order reaches the lanes intact.
type Sequencer struct {
	depth int

	mu    sync.Mutex
	lanes map[int64]*lane
	wg    sync.WaitGroup
}

type lane struct {
	jobs    chan func()
	pending int
}

// NewSequencer returns a Sequencer whose lanes buffer depth updates before
// the dispatcher blocks.
func NewSequencer(depth int) *Sequencer {
	if depth <= 0 {
		depth = 32
	}
	return &Sequencer{depth: depth, lanes: make(map[int64]*lane)}
}

func (s *Sequencer) submit(userID int64, fn func()) {
	s.mu.Lock()
	l, ok := s.lanes[userID]
	if !ok {
		l = &lane{jobs: make(chan func(), s.depth)}
		s.lanes[userID] = l
		s.wg.Add(1)
		go s.run(userID, l)
	}
	l.pending++
	s.mu.Unlock()
	l.jobs <- fn
}

// run drains the lane and retires it once nothing is pending.
func (s *Sequencer) run(userID int64, l *lane) {
	defer s.wg.Done()
	for {
		fn := <-l.jobs
		fn()
		s.mu.Lock()
		l.pending--
		if l.pending == 0 {
			delete(s.lanes, userID)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// Wait blocks until every submitted update has been handled.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}

// Middleware hands the update to the sender's lane and returns at once.
// Updates without a sender run inline.
func (s *Sequencer) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil {
			return next(c)
		}
		s.submit(user.ID, func() {
			if err := next(c); err != nil {
				logger.Warn(ctxOf(c), "tg", "tg.lane",
					slog.String("status", "error"),
					slog.Int64("user_id", user.ID),
					logger.Err(err),
				)
			}
		})
		return nil
	}
}

func ctxOf(c tele.Context) context.Context {
	if ctx, ok := tghelpers.ContextFrom(c); ok {
		return ctx
	}
	return context.Background()
}
