package middleware

import tele "gopkg.in/telebot.v4"

// AdminChecker reports whether a Telegram user is an administrator.
type AdminChecker interface {
	IsAdmin(userID int64) bool
}

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	Admins   AdminChecker
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allowed(c tele.Context) bool {
	if o.Admins == nil {
		return false
	}
	user := c.Sender()
	return user != nil && o.Admins.IsAdmin(user.ID)
}

// AdminOnlyMiddleware lets only administrators reach downstream handlers.
// Without an AdminChecker every sender is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.allowed(c) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
