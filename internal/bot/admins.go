package bot

import "slices"

// Admins is the fixed set of administrators loaded from configuration.
type Admins struct {
	ids   []int64
	super int64
}

// NewAdmins returns the admin set. super must be one of ids to count as admin.
func NewAdmins(ids []int64, super int64) *Admins {
	return &Admins{ids: slices.Clone(ids), super: super}
}

// IsAdmin reports whether userID may resolve payments and upload plans.
func (a *Admins) IsAdmin(userID int64) bool {
	return a != nil && slices.Contains(a.ids, userID)
}

// IsSuperAdmin reports whether userID is the owner account.
func (a *Admins) IsSuperAdmin(userID int64) bool {
	return a != nil && a.super != 0 && a.super == userID
}

// AdminIDs lists the admins that receive notifications.
func (a *Admins) AdminIDs() []int64 {
	if a == nil {
		return nil
	}
	return slices.Clone(a.ids)
}
