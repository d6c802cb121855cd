package payment

// DefaultReceiptAttempts is how many receipts a user may submit per course
// without an admin grant.
const DefaultReceiptAttempts = 3

// UnlimitedAttempts is the grant stored for an unlimited override.
const UnlimitedAttempts = 1_000_000

// Cap limits receipt submissions per user and course.
type Cap struct {
	Base int
}

// DefaultCap returns the cap used when nothing is configured.
func DefaultCap() Cap { return Cap{Base: DefaultReceiptAttempts} }

func (c Cap) base() int {
	if c.Base <= 0 {
		return DefaultReceiptAttempts
	}
	return c.Base
}

// Allowed reports whether another submission is accepted after used ones
// with extra granted attempts.
func (c Cap) Allowed(used, extra int) bool {
	return used < c.Limit(extra)
}

// Limit returns the total number of accepted submissions.
func (c Cap) Limit(extra int) int {
	if extra >= UnlimitedAttempts {
		return UnlimitedAttempts
	}
	if extra < 0 {
		extra = 0
	}
	return c.base() + extra
}

// Remaining returns how many submissions are still accepted.
func (c Cap) Remaining(used, extra int) int {
	if r := c.Limit(extra) - used; r > 0 {
		return r
	}
	return 0
}

// Grant adds n extra attempts to current; n < 0 means unlimited.
func Grant(current, n int) int {
	if n < 0 || current >= UnlimitedAttempts {
		return UnlimitedAttempts
	}
	if total := current + n; total < UnlimitedAttempts {
		return total
	}
	return UnlimitedAttempts
}
