package models

import (
	"time"
)

// User is a bot user as stored in the snapshot. SubscriptionEnd is nil for
// users that never had a subscription; an expired subscription keeps its old
// end date until the next extension resets it.
type User struct {
	Username        string     `json:"username,omitempty"`
	FirstName       string     `json:"first_name,omitempty"`
	SubscriptionEnd *time.Time `json:"subscription_end"`
	Referrals       int        `json:"referrals"`
	LastPlan        PlanKind   `json:"last_plan,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ActiveAt reports whether the user holds a live subscription at the given
// instant. An end date equal to now counts as expired.
func (u *User) ActiveAt(now time.Time) bool {
	return u.SubscriptionEnd != nil && u.SubscriptionEnd.After(now)
}
