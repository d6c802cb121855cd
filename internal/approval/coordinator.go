// Package approval resolves pending payments on behalf of admins. At most one
// resolution per paying user runs at a time.
package approval

import (
	"context"
	"errors"
	"sync"

	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/payment"
)

const component = "service.approval"

// ErrConflict means another admin is already resolving the same payment.
var ErrConflict = errors.New("approval: payment is already being processed")

// Key identifies one in-flight resolution.
type Key struct {
	Action payment.Action
	UserID int64
}

// Coordinator holds the set of in-flight resolutions.
type Coordinator struct {
	Deps

	mu       sync.Mutex
	inflight map[Key]int64
}

// New returns a Coordinator over d.
func New(d Deps) *Coordinator {
	return &Coordinator{Deps: d, inflight: make(map[Key]int64)}
}

// Begin admits adminID to resolve the pending payment of userID with action.
// It returns false when any resolution for userID is already in flight, since
// approve and reject race on the same payment.
func (c *Coordinator) Begin(action payment.Action, userID, adminID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.inflight {
		if k.UserID == userID {
			return false
		}
	}
	c.inflight[Key{Action: action, UserID: userID}] = adminID
	return true
}

// End releases the admission taken by Begin.
func (c *Coordinator) End(action payment.Action, userID int64) {
	c.mu.Lock()
	delete(c.inflight, Key{Action: action, UserID: userID})
	c.mu.Unlock()
}

// InFlight reports the admin currently resolving userID's payment, if any.
func (c *Coordinator) InFlight(userID int64) (adminID int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, a := range c.inflight {
		if k.UserID == userID {
			return a, true
		}
	}
	return 0, false
}

// Run takes the admission, resolves and releases it on every exit path.
func (c *Coordinator) Run(ctx context.Context, userID int64, action payment.Action, adminID int64) (Result, error) {
	if !action.Valid() {
		return Result{}, fault.Validation("approval.bad_action", "عملیات نامعتبر است.")
	}
	if !c.Begin(action, userID, adminID) {
		logConflict(ctx, userID, action, adminID, "in_flight")
		return Result{}, fault.Conflict("approval.in_flight", ErrConflict)
	}
	defer c.End(action, userID)
	return c.Resolve(ctx, userID, action, adminID)
}
