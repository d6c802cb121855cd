// Package payment is the append-only ledger of receipt submissions.
package payment

import "time"

// Status is the lifecycle state of a payment record.
type Status string

const (
	StatusNone     Status = ""
	StatusPending  Status = "pending_approval"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Action is an admin resolution applied to a pending payment.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Result returns the status a pending payment moves to under a.
func (a Action) Result() Status {
	if a == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool { return a == ActionApprove || a == ActionReject }

// NoteSuperseded marks a pending record replaced by a newer receipt.
const NoteSuperseded = "superseded"

// Record is one receipt submission.
type Record struct {
	ID             string    `json:"payment_id"`
	UserID         int64     `json:"user_id"`
	Course         string    `json:"course_type"`
	Amount         int64     `json:"amount"`
	OriginalAmount int64     `json:"original_amount,omitempty"`
	Coupon         string    `json:"coupon,omitempty"`
	ReceiptFileID  string    `json:"receipt_file_id,omitempty"`
	Status         Status    `json:"status"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ResolvedBy     int64     `json:"resolved_by,omitempty"`
	ResolvedAt     time.Time `json:"resolved_at,omitzero"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Pending reports whether the record still awaits an admin decision.
func (r Record) Pending() bool { return r.Status == StatusPending }
